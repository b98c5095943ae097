package transport

import (
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/teslashibe/go-follow/internal/log"
)

// MQTTOptions configures the MQTT transport.
type MQTTOptions struct {
	Topic          string
	ClientID       string
	QoS            byte
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

func (o MQTTOptions) withDefaults() MQTTOptions {
	if o.Topic == "" {
		o.Topic = "follow/control"
	}
	if o.ClientID == "" {
		o.ClientID = "go-follow"
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 5 * time.Second
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 2 * time.Second
	}
	return o
}

// MQTT publishes control lines to a broker topic, for actuators that
// subscribe over Wi-Fi instead of a serial link.
type MQTT struct {
	opts MQTTOptions

	mu        sync.RWMutex
	client    mqtt.Client
	broker    string
	writer    *asyncWriter
	connected bool
}

// NewMQTT creates a disconnected MQTT transport.
func NewMQTT(opts MQTTOptions) *MQTT {
	return &MQTT{opts: opts.withDefaults()}
}

// Connect establishes a connection to broker ("host:port" or a URL).
// The client reconnects automatically after the first successful connect.
func (m *MQTT) Connect(broker string) error {
	if broker == "" {
		return ErrNoDevice
	}
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	_ = m.Disconnect()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(m.opts.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		m.setConnected(true)
		log.Info("mqtt connection established", "component", "transport", "broker", broker)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		m.setConnected(false)
		log.Warn("mqtt connection lost, will auto-reconnect",
			"component", "transport", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(opts)

	log.Info("connecting to mqtt broker", "component", "transport", "broker", broker)
	token := client.Connect()
	if !token.WaitTimeout(m.opts.ConnectTimeout) {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection timeout: %s", broker)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	m.mu.Lock()
	m.client = client
	m.broker = broker
	m.connected = true
	m.writer = newAsyncWriter("mqtt", m.publish, nil)
	m.mu.Unlock()
	return nil
}

// Disconnect closes the broker connection.
func (m *MQTT) Disconnect() error {
	m.mu.Lock()
	client, writer := m.client, m.writer
	m.client = nil
	m.writer = nil
	m.connected = false
	m.mu.Unlock()

	if client == nil {
		return ErrNotConnected
	}
	writer.close()
	client.Disconnect(250)
	return nil
}

// IsConnected reports whether the broker connection is up.
func (m *MQTT) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Send queues line for publishing.
func (m *MQTT) Send(line []byte) {
	m.mu.RLock()
	w, ok := m.writer, m.connected
	m.mu.RUnlock()
	if ok && w != nil {
		w.enqueue(line)
	}
}

// Stats returns the delivery counters of the current connection.
func (m *MQTT) Stats() Stats {
	m.mu.RLock()
	w, broker := m.writer, m.broker
	m.mu.RUnlock()

	st := Stats{Device: broker}
	if w != nil {
		st.Written, st.Replaced, st.Failed = w.counters()
	}
	return st
}

func (m *MQTT) setConnected(c bool) {
	m.mu.Lock()
	m.connected = c
	m.mu.Unlock()
}

func (m *MQTT) publish(line []byte) error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return ErrNotConnected
	}

	token := client.Publish(m.opts.Topic, m.opts.QoS, false, line)
	if !token.WaitTimeout(m.opts.PublishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}
