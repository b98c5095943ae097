package source

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-follow/internal/log"
	"github.com/teslashibe/go-follow/pkg/landmark"
	"github.com/teslashibe/go-follow/pkg/protocol"
)

// Control receives the user-interaction events carried alongside frames.
// *tracking.Tracker implements it.
type Control interface {
	HandleViewport(width, height float64)
	HandleTap(x, y float64) bool
}

// Dispatcher routes producer messages: frames into a mailbox, viewport
// and tap events to a Control.
type Dispatcher struct {
	out      *Mailbox
	control  Control
	sourceID string
	frames   atomic.Uint64
}

// NewDispatcher creates a dispatcher. control may be nil, in which case
// viewport and tap messages are rejected.
func NewDispatcher(out *Mailbox, control Control, sourceID string) *Dispatcher {
	return &Dispatcher{out: out, control: control, sourceID: sourceID}
}

// HandleText processes one JSON envelope. The returned message, if any,
// should be sent back to the producer.
func (d *Dispatcher) HandleText(data []byte) (*protocol.Message, error) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return nil, err
	}

	switch msg.Type {
	case protocol.TypeFrame:
		f, err := msg.GetFrame()
		if err != nil {
			return nil, err
		}
		d.publish(f)

	case protocol.TypeViewport:
		if d.control == nil {
			return nil, fmt.Errorf("viewport not accepted on this source")
		}
		v, err := msg.GetViewportData()
		if err != nil {
			return nil, fmt.Errorf("failed to parse viewport: %w", err)
		}
		d.control.HandleViewport(v.Width, v.Height)

	case protocol.TypeTap:
		if d.control == nil {
			return nil, fmt.Errorf("tap not accepted on this source")
		}
		tap, err := msg.GetTapData()
		if err != nil {
			return nil, fmt.Errorf("failed to parse tap: %w", err)
		}
		if !d.control.HandleTap(tap.X, tap.Y) {
			log.Debug("tap ignored", "component", "source", "source_id", d.sourceID, "x", tap.X, "y", tap.Y)
		}

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			return nil, fmt.Errorf("failed to parse ping: %w", err)
		}
		pingTS := ping.Timestamp
		if pingTS == 0 {
			pingTS = msg.Timestamp
		}
		return protocol.NewPongMessage(ping.ID, pingTS, time.Now().UnixMilli())

	default:
		// status, event, error and pong are informational from producers
	}
	return nil, nil
}

// HandleBinary processes one msgpack-encoded frame.
func (d *Dispatcher) HandleBinary(data []byte) error {
	f, err := protocol.DecodeFrame(data)
	if err != nil {
		return err
	}
	d.publish(f)
	return nil
}

// Publish stamps f with the dispatcher's source ID and hands it on.
func (d *Dispatcher) Publish(f *landmark.Frame) {
	d.publish(f)
}

// Frames returns how many frames this dispatcher has published.
func (d *Dispatcher) Frames() uint64 {
	return d.frames.Load()
}

func (d *Dispatcher) publish(f *landmark.Frame) {
	if f.SourceID == "" {
		f.SourceID = d.sourceID
	}
	d.frames.Add(1)
	d.out.Publish(f)
}
