package tracking

import (
	"sync"
	"time"

	"github.com/teslashibe/go-follow/internal/log"
	"github.com/teslashibe/go-follow/internal/timeutil"
	"github.com/teslashibe/go-follow/pkg/protocol"
)

// dropLogInterval throttles the "not connected" debug log.
const dropLogInterval = 5 * time.Second

// Sender is the part of a transport the emitter needs.
type Sender interface {
	IsConnected() bool
	Send(line []byte)
}

// EmitterStats are the emitter counters.
type EmitterStats struct {
	Sent     uint64    `json:"sent"`
	Dropped  uint64    `json:"dropped"` // Gate passed while disconnected
	Gated    uint64    `json:"gated"`   // Cycles inside the interval
	LastLine string    `json:"last_line"`
	LastEmit time.Time `json:"last_emit"`
}

// Emitter rate-limits control lines and hands them to the transport.
type Emitter struct {
	out      Sender
	clock    timeutil.Clock
	interval time.Duration

	mu       sync.Mutex
	lastEmit time.Time
	emitted  bool
	stats    EmitterStats

	lastDropLog time.Time
}

// NewEmitter creates an emitter allowing one line per interval.
// A nil clock uses the wall clock.
func NewEmitter(out Sender, interval time.Duration, clock timeutil.Clock) *Emitter {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Emitter{
		out:      out,
		clock:    clock,
		interval: interval,
	}
}

// Pass reports whether an emission is due. When it is, the emission time
// is recorded immediately, whether or not the line is later delivered.
func (e *Emitter) Pass() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if e.emitted && now.Sub(e.lastEmit) < e.interval {
		e.stats.Gated++
		return false
	}
	e.lastEmit = now
	e.emitted = true
	e.stats.LastEmit = now
	return true
}

// Deliver formats cmd and sends it if the transport is connected.
// Lines produced while disconnected are dropped.
func (e *Emitter) Deliver(cmd protocol.Command) bool {
	line := cmd.Line()

	e.mu.Lock()
	e.stats.LastLine = cmd.String()
	if e.out == nil || !e.out.IsConnected() {
		e.stats.Dropped++
		now := e.clock.Now()
		logDrop := now.Sub(e.lastDropLog) > dropLogInterval
		if logDrop {
			e.lastDropLog = now
		}
		dropped := e.stats.Dropped
		e.mu.Unlock()

		if logDrop {
			log.Debug("transport not connected, dropping control line",
				"component", "emitter", "line", cmd.String(), "dropped_total", dropped)
		}
		return false
	}
	e.stats.Sent++
	e.mu.Unlock()

	e.out.Send(line)
	return true
}

// SetSender swaps the transport.
func (e *Emitter) SetSender(out Sender) {
	e.mu.Lock()
	e.out = out
	e.mu.Unlock()
}

// Connected reports whether the current transport is connected.
func (e *Emitter) Connected() bool {
	e.mu.Lock()
	out := e.out
	e.mu.Unlock()
	return out != nil && out.IsConnected()
}

// SetInterval changes the emission interval.
func (e *Emitter) SetInterval(d time.Duration) {
	e.mu.Lock()
	e.interval = d
	e.mu.Unlock()
}

// Interval returns the emission interval.
func (e *Emitter) Interval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interval
}

// Stats returns a copy of the counters.
func (e *Emitter) Stats() EmitterStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
