package hub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-follow/internal/log"
	"github.com/teslashibe/go-follow/pkg/protocol"
)

// Hub fans pipeline updates out to dashboard connections. It keeps the last
// few broadcasts and replays them to clients as they connect, so a new
// dashboard shows the current status without waiting for the next cycle.
type Hub struct {
	name string

	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	// Guards clients and recent
	mu     sync.RWMutex
	recent []Message
	replay int

	// Closed when Run returns
	done chan struct{}

	running  atomic.Bool
	dropped  atomic.Uint64 // broadcasts lost before reaching the loop
	overruns atomic.Uint64 // queued messages discarded for slow clients
}

// Stats is a snapshot of hub counters.
type Stats struct {
	Name     string `json:"name"`
	Clients  int    `json:"clients"`
	Dropped  uint64 `json:"dropped"`
	Overruns uint64 `json:"overruns"`
}

// New creates a hub that replays the last replay messages to new clients.
// A replay of 0 disables replay.
func New(name string, replay int) *Hub {
	if replay < 0 {
		replay = 0
	}
	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		replay:     replay,
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx ends, then closes
// every client. Call it in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			for _, msg := range h.recent {
				h.deliver(client, msg)
			}
			h.mu.Unlock()
			log.Info("dashboard connected", "component", "hub", "hub", h.name, "client", client.id, "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Info("dashboard disconnected", "component", "hub", "hub", h.name, "client", client.id, "clients", count)

		case msg := <-h.broadcast:
			h.mu.Lock()
			h.remember(msg)
			for client := range h.clients {
				h.deliver(client, msg)
			}
			h.mu.Unlock()
		}
	}
}

// remember appends msg to the replay window. Callers hold h.mu.
func (h *Hub) remember(msg Message) {
	if h.replay == 0 {
		return
	}
	h.recent = append(h.recent, msg)
	if len(h.recent) > h.replay {
		h.recent = h.recent[len(h.recent)-h.replay:]
	}
}

// deliver queues msg for client. When the client's queue is full the oldest
// queued message is discarded, so a slow dashboard lags but always ends on
// the newest update. Only the hub loop sends on client.send.
func (h *Hub) deliver(client *Client, msg Message) {
	for {
		select {
		case client.send <- msg:
			return
		default:
		}
		select {
		case <-client.send:
			client.overruns.Add(1)
			if h.overruns.Add(1)%100 == 1 {
				log.Warn("dashboard falling behind", "component", "hub", "hub", h.name, "client", client.id,
					"overruns_total", h.overruns.Load())
			}
		default:
		}
	}
}

// Broadcast queues a message for all connected clients. Never blocks.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		if h.dropped.Add(1)%100 == 1 {
			log.Warn("hub broadcast channel full, dropping message",
				"component", "hub", "hub", h.name, "dropped_total", h.dropped.Load())
		}
	}
}

// BroadcastMessage encodes and broadcasts a protocol message.
func (h *Hub) BroadcastMessage(msg *protocol.Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether the hub loop is running.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Stats returns a snapshot of the hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Name:     h.name,
		Clients:  h.ClientCount(),
		Dropped:  h.dropped.Load(),
		Overruns: h.overruns.Load(),
	}
}
