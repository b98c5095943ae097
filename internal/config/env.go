package config

import (
	"os"
	"strconv"
)

// Environment variables read by ApplyEnv.
const (
	EnvMode       = "FOLLOW_MODE"
	EnvLogLevel   = "FOLLOW_LOG_LEVEL"
	EnvHTTPPort   = "FOLLOW_HTTP_PORT"
	EnvSerialPort = "FOLLOW_SERIAL_PORT"
	EnvBaudRate   = "FOLLOW_BAUD"
	EnvMQTTBroker = "FOLLOW_MQTT_BROKER"
	EnvDeviceURL  = "FOLLOW_DEVICE_URL"
)

// SerialPort returns the serial device from FOLLOW_SERIAL_PORT.
// Falls back to the provided default if not set.
func SerialPort(defaultPort string) string {
	return envString(EnvSerialPort, defaultPort)
}

// BaudRate returns the baud rate from FOLLOW_BAUD or the default.
func BaudRate(defaultBaud int) int {
	return envInt(EnvBaudRate, defaultBaud)
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
