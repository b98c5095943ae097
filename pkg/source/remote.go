package source

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-follow/internal/log"
	"github.com/teslashibe/go-follow/pkg/protocol"
)

const (
	reconnectBaseDelay = 500 * time.Millisecond
	reconnectMaxDelay  = 10 * time.Second
	remoteWriteTimeout = 2 * time.Second
)

// RemoteConfig configures a Remote source.
type RemoteConfig struct {
	URL              string
	HandshakeTimeout time.Duration
}

// Remote dials a landmark producer that serves frames over WebSocket (for
// example a phone app) and publishes what it receives. Text messages are
// JSON envelopes; binary messages are msgpack frames.
type Remote struct {
	cfg  RemoteConfig
	id   string
	disp *Dispatcher

	connMu    sync.Mutex
	conn      *websocket.Conn
	connected bool

	messages atomic.Uint64
	rejected atomic.Uint64
	dials    atomic.Uint64
}

// RemoteStats is a snapshot of remote source counters.
type RemoteStats struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Connected bool   `json:"connected"`
	Messages  uint64 `json:"messages"`
	Rejected  uint64 `json:"rejected"`
	Dials     uint64 `json:"dials"`
}

// NewRemote creates a remote source. control receives viewport and tap
// events sent by the producer and may be nil.
func NewRemote(cfg RemoteConfig, out *Mailbox, control Control) (*Remote, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return nil, fmt.Errorf("invalid remote url %q: expected ws:// or wss://", cfg.URL)
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	id := "remote-" + uuid.NewString()[:8]
	return &Remote{
		cfg:  cfg,
		id:   id,
		disp: NewDispatcher(out, control, id),
	}, nil
}

// ID returns the source ID stamped on published frames.
func (r *Remote) ID() string {
	return r.id
}

// IsConnected reports whether the producer connection is up.
func (r *Remote) IsConnected() bool {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	return r.connected
}

// Stats returns a snapshot of the remote counters.
func (r *Remote) Stats() RemoteStats {
	return RemoteStats{
		ID:        r.id,
		URL:       r.cfg.URL,
		Connected: r.IsConnected(),
		Messages:  r.messages.Load(),
		Rejected:  r.rejected.Load(),
		Dials:     r.dials.Load(),
	}
}

// Run connects to the producer and reads until ctx ends, reconnecting
// with exponential backoff.
func (r *Remote) Run(ctx context.Context) error {
	delay := reconnectBaseDelay
	for {
		err := r.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			delay = reconnectBaseDelay
		}
		log.Warn("remote source disconnected, reconnecting",
			"component", "source", "source_id", r.id, "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

// session runs one connection. It returns nil if the connection was
// established and later dropped.
func (r *Remote) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: r.cfg.HandshakeTimeout}
	r.dials.Add(1)
	conn, _, err := dialer.DialContext(ctx, r.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", r.cfg.URL, err)
	}
	conn.SetReadLimit(protocol.MaxFrameSize)

	r.connMu.Lock()
	r.conn = conn
	r.connected = true
	r.connMu.Unlock()
	log.Info("remote source connected", "component", "source", "source_id", r.id, "url", r.cfg.URL)

	stop := context.AfterFunc(ctx, func() {
		r.connMu.Lock()
		defer r.connMu.Unlock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})

	defer func() {
		stop()
		r.connMu.Lock()
		r.conn = nil
		r.connected = false
		r.connMu.Unlock()
		conn.Close()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("remote read error", "component", "source", "source_id", r.id, "error", err)
			}
			return nil
		}
		r.messages.Add(1)
		r.handle(msgType, data)
	}
}

func (r *Remote) handle(msgType int, data []byte) {
	var (
		reply *protocol.Message
		err   error
	)
	switch msgType {
	case websocket.BinaryMessage:
		err = r.disp.HandleBinary(data)
	case websocket.TextMessage:
		reply, err = r.disp.HandleText(data)
	default:
		return
	}

	if err != nil {
		r.rejected.Add(1)
		log.Warn("rejected remote message", "component", "source", "source_id", r.id, "error", err)
		reply, err = protocol.NewErrorMessage(err)
		if err != nil {
			return
		}
	}
	if reply != nil {
		r.send(reply)
	}
}

func (r *Remote) send(msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		return
	}

	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn == nil {
		return
	}
	r.conn.SetWriteDeadline(time.Now().Add(remoteWriteTimeout))
	if err := r.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Debug("remote write failed", "component", "source", "source_id", r.id, "error", err)
	}
}
