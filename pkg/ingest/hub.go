// Package ingest accepts landmark producers (phone apps, browser pages,
// detector helpers) over WebSocket and feeds their frames to the tracker.
package ingest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-follow/internal/log"
	"github.com/teslashibe/go-follow/pkg/protocol"
	"github.com/teslashibe/go-follow/pkg/source"
)

// ProducerConnection represents a connected landmark producer
type ProducerConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time
	Frames    uint64

	mu sync.Mutex
}

// Send sends a message to the producer
func (p *ProducerConnection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages WebSocket connections from landmark producers
type Hub struct {
	mu        sync.RWMutex
	producers map[string]*ProducerConnection

	out     *source.Mailbox
	control source.Control

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
	rejected         atomic.Uint64
}

// NewHub creates a producer hub publishing frames into out. control
// receives viewport and tap events and may be nil.
func NewHub(out *source.Mailbox, control source.Control) *Hub {
	return &Hub{
		producers: make(map[string]*ProducerConnection),
		out:       out,
		control:   control,
	}
}

// RegisterRoutes registers the producer WebSocket endpoints
func (h *Hub) RegisterRoutes(router fiber.Router) {
	upgrade := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	router.Get("/ws/landmarks", upgrade, websocket.New(h.handleProducer))
	router.Get("/ws/landmarks/:id", upgrade, websocket.New(h.handleProducer))
}

// handleProducer handles a producer WebSocket connection
func (h *Hub) handleProducer(c *websocket.Conn) {
	producerID := c.Params("id")
	if producerID == "" {
		producerID = generateProducerID()
	}

	producer := &ProducerConnection{
		ID:        producerID,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	h.mu.Lock()
	if prev, ok := h.producers[producerID]; ok {
		// Same ID reconnected; the newer connection wins
		prev.Conn.Close()
	}
	h.producers[producerID] = producer
	count := len(h.producers)
	h.mu.Unlock()

	log.Info("producer connected", "component", "ingest", "producer", producerID, "producers", count)

	defer func() {
		h.mu.Lock()
		if h.producers[producerID] == producer {
			delete(h.producers, producerID)
		}
		count := len(h.producers)
		h.mu.Unlock()

		log.Info("producer disconnected", "component", "ingest", "producer", producerID, "producers", count)
	}()

	disp := source.NewDispatcher(h.out, h.control, producerID)
	c.SetReadLimit(protocol.MaxFrameSize)

	// Read loop
	for {
		msgType, data, err := c.ReadMessage()
		if err != nil {
			log.Debug("producer read error", "component", "ingest", "producer", producerID, "error", err)
			return
		}

		producer.mu.Lock()
		producer.LastSeen = time.Now()
		producer.mu.Unlock()

		h.messagesReceived.Add(1)
		h.handleMessage(producer, disp, msgType, data)
	}
}

// handleMessage processes one incoming message from a producer
func (h *Hub) handleMessage(p *ProducerConnection, disp *source.Dispatcher, msgType int, data []byte) {
	before := disp.Frames()

	var (
		reply *protocol.Message
		err   error
	)
	switch msgType {
	case websocket.BinaryMessage:
		err = disp.HandleBinary(data)
	case websocket.TextMessage:
		reply, err = disp.HandleText(data)
	default:
		return
	}

	if err != nil {
		h.rejected.Add(1)
		log.Warn("rejected producer message", "component", "ingest", "producer", p.ID, "error", err)
		reply, err = protocol.NewErrorMessage(err)
		if err != nil {
			return
		}
	} else if disp.Frames() != before {
		h.framesReceived.Add(1)
		p.mu.Lock()
		p.Frames++
		p.mu.Unlock()
	}

	if reply != nil {
		h.messagesSent.Add(1)
		if err := p.Send(reply); err != nil {
			log.Debug("producer write failed", "component", "ingest", "producer", p.ID, "error", err)
		}
	}
}

// Broadcast sends a message to all connected producers
func (h *Hub) Broadcast(msg *protocol.Message) {
	for _, p := range h.GetProducers() {
		h.messagesSent.Add(1)
		if err := p.Send(msg); err != nil {
			log.Debug("broadcast to producer failed", "component", "ingest", "producer", p.ID, "error", err)
		}
	}
}

// GetProducer returns a producer connection by ID
func (h *Hub) GetProducer(producerID string) *ProducerConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.producers[producerID]
}

// GetProducers returns all connected producers
func (h *Hub) GetProducers() []*ProducerConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	producers := make([]*ProducerConnection, 0, len(h.producers))
	for _, p := range h.producers {
		producers = append(producers, p)
	}
	return producers
}

// ProducerCount returns the number of connected producers
func (h *Hub) ProducerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.producers)
}

// Stats contains hub statistics
type Stats struct {
	ProducerCount    int                 `json:"producer_count"`
	MessagesReceived uint64              `json:"messages_received"`
	MessagesSent     uint64              `json:"messages_sent"`
	FramesReceived   uint64              `json:"frames_received"`
	Rejected         uint64              `json:"rejected"`
	Mailbox          source.MailboxStats `json:"mailbox"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		ProducerCount:    h.ProducerCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
		Rejected:         h.rejected.Load(),
		Mailbox:          h.out.Stats(),
	}
}

// ProducerInfo contains info about a connected producer
type ProducerInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Frames    uint64    `json:"frames"`
}

// GetProducerInfos returns info about all connected producers
func (h *Hub) GetProducerInfos() []ProducerInfo {
	producers := h.GetProducers()

	infos := make([]ProducerInfo, 0, len(producers))
	for _, p := range producers {
		p.mu.Lock()
		infos = append(infos, ProducerInfo{
			ID:        p.ID,
			Connected: p.Connected,
			LastSeen:  p.LastSeen,
			Frames:    p.Frames,
		})
		p.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for producer inspection
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	producers := api.Group("/producers")

	producers.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"producers": h.GetProducerInfos(),
			"count":     h.ProducerCount(),
		})
	})

	producers.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}

// generateProducerID generates a unique producer ID
func generateProducerID() string {
	return "producer-" + uuid.NewString()[:8]
}
