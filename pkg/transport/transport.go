// Package transport delivers control lines to the follow actuator.
//
// Every adapter is fire-and-forget: Send never blocks the caller. Lines are
// handed to a writer goroutine through a single slot, so a slow link only
// ever writes the most recent line.
package transport

import "errors"

var (
	// ErrNotConnected is returned when an operation needs an open link.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrNoDevice is returned by Connect for an empty device ID.
	ErrNoDevice = errors.New("transport: no device specified")
)

// Transport is the actuator link.
type Transport interface {
	// IsConnected reports whether Send will reach the device.
	IsConnected() bool

	// Send queues a line for delivery. It never blocks and drops the line
	// when disconnected.
	Send(line []byte)

	// Connect opens the link to deviceID (a serial path, URL or broker).
	// An existing link is closed first.
	Connect(deviceID string) error

	// Disconnect closes the link.
	Disconnect() error
}

// Device is a connectable endpoint.
type Device struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	USB     bool   `json:"usb"`
	VID     string `json:"vid,omitempty"`
	PID     string `json:"pid,omitempty"`
	Serial  string `json:"serial,omitempty"`
	Current bool   `json:"current"`
}

// Lister enumerates devices a transport can connect to.
type Lister interface {
	ListDevices() ([]Device, error)
}

// Stats are the delivery counters of an adapter.
type Stats struct {
	Device   string `json:"device"`
	Written  uint64 `json:"written"`
	Replaced uint64 `json:"replaced"` // Overwritten before the writer got to them
	Failed   uint64 `json:"failed"`
}

// StatsReporter is implemented by adapters that count deliveries.
type StatsReporter interface {
	Stats() Stats
}
