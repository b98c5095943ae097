// Package source provides landmark frame producers and the keep-latest
// mailbox that hands their frames to the tracker.
package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/teslashibe/go-follow/pkg/landmark"
)

// ErrClosed is returned by Next after the mailbox is closed.
var ErrClosed = errors.New("source: mailbox closed")

// Producer publishes frames into a mailbox until its context ends.
type Producer interface {
	Run(ctx context.Context) error
}

// Mailbox is a single-slot frame buffer. A frame published before the
// previous one was consumed replaces it, so the consumer always sees the
// newest detection and producers never block.
type Mailbox struct {
	mu    sync.Mutex
	cond  *sync.Cond
	frame *landmark.Frame

	published        uint64
	consumed         uint64
	dropped          uint64
	consecutiveDrops uint64
	lastConsumedAt   time.Time
	lastConsumedSeq  uint64

	closed bool
}

// MailboxStats is a snapshot of mailbox counters.
type MailboxStats struct {
	Published        uint64    `json:"published"`
	Consumed         uint64    `json:"consumed"`
	Dropped          uint64    `json:"dropped"`
	ConsecutiveDrops uint64    `json:"consecutive_drops"`
	LastConsumedAt   time.Time `json:"last_consumed_at"`
	LastConsumedSeq  uint64    `json:"last_consumed_seq"`
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish stores f, replacing any unconsumed frame. Never blocks.
// Publishing to a closed mailbox is a no-op.
func (m *Mailbox) Publish(f *landmark.Frame) {
	if f == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.frame != nil {
		m.dropped++
		m.consecutiveDrops++
	}
	m.frame = f
	m.published++
	m.cond.Signal()
}

// Next blocks until a frame is available, ctx is done, or the mailbox is
// closed. It implements tracking.FrameSource.
func (m *Mailbox) Next(ctx context.Context) (*landmark.Frame, error) {
	// Wake the waiter when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for m.frame == nil && !m.closed && ctx.Err() == nil {
		m.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.closed {
		return nil, ErrClosed
	}

	f := m.frame
	m.frame = nil
	m.consumed++
	m.consecutiveDrops = 0
	m.lastConsumedAt = time.Now()
	m.lastConsumedSeq = f.Seq
	return f, nil
}

// Close wakes any waiter and rejects further frames. Idempotent.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.frame = nil
	m.cond.Broadcast()
}

// Stats returns a snapshot of the mailbox counters.
func (m *Mailbox) Stats() MailboxStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MailboxStats{
		Published:        m.published,
		Consumed:         m.consumed,
		Dropped:          m.dropped,
		ConsecutiveDrops: m.consecutiveDrops,
		LastConsumedAt:   m.lastConsumedAt,
		LastConsumedSeq:  m.lastConsumedSeq,
	}
}
