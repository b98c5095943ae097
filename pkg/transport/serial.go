package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/teslashibe/go-follow/internal/log"
)

// maxWriteFailures closes the port after this many consecutive failed writes.
const maxWriteFailures = 3

// Port is the subset of serial.Port the adapter uses.
type Port interface {
	io.Writer
	Close() error
}

// PortOpener opens a serial device.
type PortOpener func(path string, mode *serial.Mode) (Port, error)

// OpenSerialPort opens a real serial port.
func OpenSerialPort(path string, mode *serial.Mode) (Port, error) {
	return serial.Open(path, mode)
}

// Serial sends control lines over a serial port, including Bluetooth SPP
// devices exposed as /dev/rfcomm* or /dev/tty.*.
type Serial struct {
	opts PortOptions
	open PortOpener

	mu       sync.Mutex
	port     Port
	device   string
	writer   *asyncWriter
	failures int
}

// NewSerial creates a disconnected serial transport.
func NewSerial(opts PortOptions) *Serial {
	return NewSerialWithOpener(opts, OpenSerialPort)
}

// NewSerialWithOpener creates a serial transport with a custom opener.
func NewSerialWithOpener(opts PortOptions, open PortOpener) *Serial {
	return &Serial{opts: opts, open: open}
}

// Connect opens the serial device at path.
func (s *Serial) Connect(path string) error {
	if path == "" {
		return ErrNoDevice
	}
	mode, err := s.opts.SerialMode()
	if err != nil {
		return err
	}

	if err := s.Disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
		log.Warn("closing previous serial port failed", "component", "transport", "error", err)
	}

	port, err := s.open(path, mode)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", path, err)
	}

	s.mu.Lock()
	s.port = port
	s.device = path
	s.failures = 0
	s.writer = newAsyncWriter("serial", s.writeLine, s.onWriteError)
	s.mu.Unlock()

	log.Info("serial port connected", "component", "transport", "device", path, "baud", mode.BaudRate)
	return nil
}

// Disconnect closes the port.
func (s *Serial) Disconnect() error {
	s.mu.Lock()
	port, writer, device := s.port, s.writer, s.device
	s.port = nil
	s.writer = nil
	s.mu.Unlock()

	if port == nil {
		return ErrNotConnected
	}
	// Close the port first so a blocked write returns.
	err := port.Close()
	writer.close()

	log.Info("serial port disconnected", "component", "transport", "device", device)
	if err != nil {
		return fmt.Errorf("close serial port %s: %w", device, err)
	}
	return nil
}

// IsConnected reports whether a port is open.
func (s *Serial) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port != nil
}

// Send queues line for the writer goroutine.
func (s *Serial) Send(line []byte) {
	s.mu.Lock()
	w := s.writer
	s.mu.Unlock()
	if w != nil {
		w.enqueue(line)
	}
}

// Device returns the connected device path.
func (s *Serial) Device() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Stats returns the delivery counters of the current connection.
func (s *Serial) Stats() Stats {
	s.mu.Lock()
	w, device := s.writer, s.device
	s.mu.Unlock()

	st := Stats{Device: device}
	if w != nil {
		st.Written, st.Replaced, st.Failed = w.counters()
	}
	return st
}

// ListDevices enumerates serial ports, with USB details where available.
func (s *Serial) ListDevices() ([]Device, error) {
	current := s.Device()

	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		names, err := serial.GetPortsList()
		if err != nil {
			return nil, fmt.Errorf("list serial ports: %w", err)
		}
		devices := make([]Device, 0, len(names))
		for _, n := range names {
			devices = append(devices, Device{ID: n, Current: n == current})
		}
		return devices, nil
	}

	devices := make([]Device, 0, len(details))
	for _, d := range details {
		devices = append(devices, Device{
			ID:      d.Name,
			Name:    d.Product,
			USB:     d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Serial:  d.SerialNumber,
			Current: d.Name == current,
		})
	}
	return devices, nil
}

func (s *Serial) writeLine(line []byte) error {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return ErrNotConnected
	}

	n, err := port.Write(line)
	if err != nil {
		return err
	}
	if n != len(line) {
		return fmt.Errorf("short write: wrote %d of %d bytes", n, len(line))
	}

	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()
	return nil
}

func (s *Serial) onWriteError(error) {
	s.mu.Lock()
	s.failures++
	tooMany := s.failures >= maxWriteFailures && s.port != nil
	port, writer, device := s.port, s.writer, s.device
	if tooMany {
		s.port = nil
		s.writer = nil
	}
	s.mu.Unlock()

	if !tooMany {
		return
	}
	port.Close()
	writer.stop()
	log.Error("serial port closed after repeated write failures",
		"component", "transport", "device", device, "failures", maxWriteFailures)
}
