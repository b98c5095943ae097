package transport

import (
	"sync"
	"time"

	"github.com/teslashibe/go-follow/internal/log"
)

// asyncWriter delivers lines on its own goroutine through a single slot.
// A line enqueued before the previous one was written replaces it.
type asyncWriter struct {
	name    string
	write   func([]byte) error
	onError func(error)

	mu       sync.Mutex
	pending  []byte
	written  uint64
	replaced uint64
	failed   uint64

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
	once sync.Once

	lastErrLog time.Time
}

func newAsyncWriter(name string, write func([]byte) error, onError func(error)) *asyncWriter {
	w := &asyncWriter{
		name:    name,
		write:   write,
		onError: onError,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// enqueue stores a copy of line and wakes the writer. Never blocks.
func (w *asyncWriter) enqueue(line []byte) {
	buf := make([]byte, len(line))
	copy(buf, line)

	w.mu.Lock()
	if w.pending != nil {
		w.replaced++
	}
	w.pending = buf
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// stop signals the writer to exit without waiting. Safe to call from the
// writer goroutine itself.
func (w *asyncWriter) stop() {
	w.once.Do(func() { close(w.quit) })
}

// close stops the writer and waits for an in-flight write to finish.
func (w *asyncWriter) close() {
	w.stop()
	<-w.done
}

func (w *asyncWriter) counters() (written, replaced, failed uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written, w.replaced, w.failed
}

func (w *asyncWriter) run() {
	defer close(w.done)

	for {
		select {
		case <-w.quit:
			return
		case <-w.wake:
		}

		w.mu.Lock()
		line := w.pending
		w.pending = nil
		w.mu.Unlock()
		if line == nil {
			continue
		}

		err := w.write(line)

		w.mu.Lock()
		if err != nil {
			w.failed++
		} else {
			w.written++
		}
		failed := w.failed
		logErr := err != nil && time.Since(w.lastErrLog) > 5*time.Second
		if logErr {
			w.lastErrLog = time.Now()
		}
		w.mu.Unlock()

		if err != nil {
			if logErr {
				log.Warn("control line write failed",
					"component", "transport", "transport", w.name, "error", err, "failed_total", failed)
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}
