package transport

import "sync"

// Mock is an in-memory Transport for tests and dry runs.
type Mock struct {
	mu         sync.Mutex
	device     string
	connected  bool
	lines      []string
	ConnectErr error
	Devices    []Device
}

// NewMock creates a disconnected mock transport.
func NewMock() *Mock {
	return &Mock{}
}

// Connect records the device and marks the mock connected.
func (m *Mock) Connect(deviceID string) error {
	if deviceID == "" {
		return ErrNoDevice
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.device = deviceID
	m.connected = true
	return nil
}

// Disconnect marks the mock disconnected.
func (m *Mock) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.connected = false
	return nil
}

// IsConnected reports the connection flag.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Send records line if connected.
func (m *Mock) Send(line []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		m.lines = append(m.lines, string(line))
	}
}

// Lines returns the recorded lines.
func (m *Mock) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

// Device returns the last connected device.
func (m *Mock) Device() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device
}

// ListDevices returns Devices, marking the connected one.
func (m *Mock) ListDevices() ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Device, len(m.Devices))
	for i, d := range m.Devices {
		d.Current = m.connected && d.ID == m.device
		out[i] = d
	}
	return out, nil
}
