// Package config loads go-follow runtime configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file, then FOLLOW_* environment variables. Command-line flags are applied
// last by the caller.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultMode       = "hand"
	DefaultHTTPPort   = 8181
	DefaultBaudRate   = 9600
	DefaultMQTTTopic  = "follow/control"
	DefaultSourceKind = "ws"
	DefaultTransport  = "serial"
)

// Config is the full runtime configuration.
type Config struct {
	Mode      string          `yaml:"mode"` // hand, face, hand3d
	LogLevel  string          `yaml:"log_level"`
	HTTP      HTTPConfig      `yaml:"http"`
	Source    SourceConfig    `yaml:"source"`
	Transport TransportConfig `yaml:"transport"`
	Tracking  TrackingConfig  `yaml:"tracking"`
}

// HTTPConfig configures the control API.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// SourceConfig selects where landmark frames come from.
type SourceConfig struct {
	Kind         string   `yaml:"kind"` // ws, remote, sidecar, camera
	RemoteURL    string   `yaml:"remote_url"`
	SidecarCmd   string   `yaml:"sidecar_cmd"`
	SidecarArgs  []string `yaml:"sidecar_args"`
	CameraDevice int      `yaml:"camera_device"`
	CameraPreset string   `yaml:"camera_preset"`
	ModelPath    string   `yaml:"model_path"`
}

// TransportConfig selects the actuator link.
type TransportConfig struct {
	Kind      string     `yaml:"kind"` // serial, http, mqtt
	Device    string     `yaml:"device"`
	BaudRate  int        `yaml:"baud_rate"`
	DeviceURL string     `yaml:"device_url"`
	MQTT      MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig configures the MQTT transport.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

// TrackingConfig overrides mode preset values. Zero means keep the preset.
type TrackingConfig struct {
	Deadband           float64 `yaml:"deadband"`
	Alpha              float64 `yaml:"alpha"`
	EmitIntervalMS     int     `yaml:"emit_interval_ms"`
	ReacquireThreshold float64 `yaml:"reacquire_threshold"`
}

// Error describes an invalid configuration field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mode:     DefaultMode,
		LogLevel: "info",
		HTTP:     HTTPConfig{Port: DefaultHTTPPort},
		Source:   SourceConfig{Kind: DefaultSourceKind, CameraPreset: "default"},
		Transport: TransportConfig{
			Kind:     DefaultTransport,
			BaudRate: DefaultBaudRate,
			MQTT: MQTTConfig{
				Topic:    DefaultMQTTTopic,
				ClientID: "go-follow",
			},
		},
	}
}

// Load reads a YAML file over the defaults, applies the environment and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from FOLLOW_* environment variables.
func (c *Config) ApplyEnv() {
	c.Mode = envString(EnvMode, c.Mode)
	c.LogLevel = envString(EnvLogLevel, c.LogLevel)
	c.HTTP.Port = envInt(EnvHTTPPort, c.HTTP.Port)
	c.Transport.Device = SerialPort(c.Transport.Device)
	c.Transport.BaudRate = BaudRate(c.Transport.BaudRate)
	c.Transport.MQTT.Broker = envString(EnvMQTTBroker, c.Transport.MQTT.Broker)
	c.Transport.DeviceURL = envString(EnvDeviceURL, c.Transport.DeviceURL)
}

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "hand", "face", "hand3d":
	default:
		return &Error{Field: "mode", Message: fmt.Sprintf("unknown mode %q", c.Mode)}
	}

	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return &Error{Field: "http.port", Message: "must be between 0 and 65535"}
	}

	switch c.Source.Kind {
	case "ws":
	case "remote":
		if c.Source.RemoteURL == "" {
			return &Error{Field: "source.remote_url", Message: "required for remote source"}
		}
	case "sidecar":
		if c.Source.SidecarCmd == "" {
			return &Error{Field: "source.sidecar_cmd", Message: "required for sidecar source"}
		}
	case "camera":
		if c.Source.ModelPath == "" {
			return &Error{Field: "source.model_path", Message: "required for camera source"}
		}
	default:
		return &Error{Field: "source.kind", Message: fmt.Sprintf("unknown source %q", c.Source.Kind)}
	}

	switch c.Transport.Kind {
	case "serial":
		if c.Transport.BaudRate <= 0 {
			return &Error{Field: "transport.baud_rate", Message: "must be positive"}
		}
	case "http":
		if c.Transport.DeviceURL == "" {
			return &Error{Field: "transport.device_url", Message: "required for http transport"}
		}
	case "mqtt":
		if c.Transport.MQTT.Broker == "" {
			return &Error{Field: "transport.mqtt.broker", Message: "required for mqtt transport"}
		}
		if c.Transport.MQTT.QoS > 2 {
			return &Error{Field: "transport.mqtt.qos", Message: "must be 0, 1 or 2"}
		}
	default:
		return &Error{Field: "transport.kind", Message: fmt.Sprintf("unknown transport %q", c.Transport.Kind)}
	}

	t := c.Tracking
	if t.Deadband < 0 {
		return &Error{Field: "tracking.deadband", Message: "must not be negative"}
	}
	if t.Alpha < 0 || t.Alpha >= 1 {
		return &Error{Field: "tracking.alpha", Message: "must be in [0, 1)"}
	}
	if t.EmitIntervalMS < 0 {
		return &Error{Field: "tracking.emit_interval_ms", Message: "must not be negative"}
	}
	if t.ReacquireThreshold < 0 {
		return &Error{Field: "tracking.reacquire_threshold", Message: "must not be negative"}
	}
	return nil
}
