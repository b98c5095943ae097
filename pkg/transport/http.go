package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/teslashibe/go-follow/internal/httpc"
	"github.com/teslashibe/go-follow/internal/log"
)

// HTTP posts each control line as a text/plain body to a network-attached
// controller (for example an ESP32 exposing POST /control).
type HTTP struct {
	client *http.Client

	mu     sync.Mutex
	url    string
	writer *asyncWriter
}

// NewHTTP creates a disconnected HTTP transport. A nil client uses the
// shared client from httpc.
func NewHTTP(client *http.Client) *HTTP {
	if client == nil {
		client = httpc.Client
	}
	return &HTTP{client: client}
}

// Connect validates the control URL and probes it with a GET. Any HTTP
// response counts as reachable.
func (h *HTTP) Connect(rawURL string) error {
	if rawURL == "" {
		return ErrNoDevice
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid device url %q", rawURL)
	}

	_ = h.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), httpc.DefaultTimeout)
	defer cancel()
	resp, err := httpc.Get(ctx, h.client, rawURL)
	if err != nil {
		return fmt.Errorf("probe %s: %w", rawURL, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	h.mu.Lock()
	h.url = rawURL
	h.writer = newAsyncWriter("http", h.post, nil)
	h.mu.Unlock()

	log.Info("http device connected", "component", "transport", "url", rawURL)
	return nil
}

// Disconnect stops posting.
func (h *HTTP) Disconnect() error {
	h.mu.Lock()
	w := h.writer
	h.writer = nil
	h.mu.Unlock()

	if w == nil {
		return ErrNotConnected
	}
	w.close()
	return nil
}

// IsConnected reports whether a device URL is set.
func (h *HTTP) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writer != nil
}

// Send queues line for posting.
func (h *HTTP) Send(line []byte) {
	h.mu.Lock()
	w := h.writer
	h.mu.Unlock()
	if w != nil {
		w.enqueue(line)
	}
}

// Stats returns the delivery counters of the current connection.
func (h *HTTP) Stats() Stats {
	h.mu.Lock()
	w, u := h.writer, h.url
	h.mu.Unlock()

	st := Stats{Device: u}
	if w != nil {
		st.Written, st.Replaced, st.Failed = w.counters()
	}
	return st
}

func (h *HTTP) post(line []byte) error {
	h.mu.Lock()
	u := h.url
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	resp, err := httpc.Post(ctx, h.client, u, "text/plain", line)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("device returned %s", resp.Status)
	}
	return nil
}
