// Package web provides the control API and live status dashboard feed.
package web

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-follow/internal/log"
	"github.com/teslashibe/go-follow/pkg/camera"
	"github.com/teslashibe/go-follow/pkg/hub"
	"github.com/teslashibe/go-follow/pkg/ingest"
	"github.com/teslashibe/go-follow/pkg/protocol"
	"github.com/teslashibe/go-follow/pkg/source"
	"github.com/teslashibe/go-follow/pkg/tracking"
	"github.com/teslashibe/go-follow/pkg/transport"
)

const (
	// maxEvents is the size of the event ring buffer.
	maxEvents = 500

	// eventReplay is how many recent events a new dashboard receives.
	eventReplay = 20
)

// Event is a notable pipeline change shown on the dashboard.
type Event struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // tracking, transport, config, error
	Message string `json:"message"`
}

// Options wires the server to the pipeline.
type Options struct {
	Port      string
	Tracker   *tracking.Tracker
	Mailbox   *source.Mailbox
	Transport transport.Transport
	Camera    *camera.Manager // nil when the camera source is not in use
	StaticDir string          // optional dashboard assets
}

// Server is the control API and dashboard server.
type Server struct {
	app  *fiber.App
	port string

	tracker   *tracking.Tracker
	mailbox   *source.Mailbox
	frames    *source.Dispatcher
	transport transport.Transport
	camera    *camera.Manager

	ingest    *ingest.Hub
	statusHub *hub.Hub
	eventHub  *hub.Hub

	// Event buffer (last maxEvents entries)
	events   []Event
	eventsMu sync.RWMutex

	// Last status seen, for change detection
	lastState string
	lastText  string
	statusMu  sync.Mutex
}

// NewServer creates the server and registers all routes.
func NewServer(opts Options) *Server {
	s := &Server{
		port:      opts.Port,
		tracker:   opts.Tracker,
		mailbox:   opts.Mailbox,
		frames:    source.NewDispatcher(opts.Mailbox, nil, "http"),
		transport: opts.Transport,
		camera:    opts.Camera,
		ingest:    ingest.NewHub(opts.Mailbox, opts.Tracker),
		statusHub: hub.New("status", 1),
		eventHub:  hub.New("events", eventReplay),
		events:    make([]Event, 0, maxEvents),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-follow",
		DisableStartupMessage: true,
		BodyLimit:             protocol.MaxFrameSize,
	})

	// CORS for phone and browser producers on other origins
	app.Use(cors.New())

	if opts.StaticDir != "" {
		app.Static("/", opts.StaticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/tuning", s.handleGetTuning)
	api.Put("/tuning", s.handleSetTuning)
	api.Post("/viewport", s.handleViewport)
	api.Post("/tap", s.handleTap)
	api.Post("/frames", s.handleFrame)
	api.Get("/events", s.handleGetEvents)
	api.Get("/ports", s.handlePorts)
	api.Post("/transport/connect", s.handleConnect)
	api.Post("/transport/disconnect", s.handleDisconnect)
	if s.camera != nil {
		api.Get("/camera", s.handleGetCamera)
		api.Put("/camera", s.handleSetCamera)
		api.Get("/camera/presets", s.handleCameraPresets)
	}
	s.ingest.RegisterAPIRoutes(api)

	// Producer ingest (contrib websocket)
	s.ingest.RegisterRoutes(app)

	// Dashboard feeds
	feeds := app.Group("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	feeds.Get("/status", websocket.New(s.handleHubWS(s.statusHub)))
	feeds.Get("/events", websocket.New(s.handleHubWS(s.eventHub)))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Ingest returns the producer hub.
func (s *Server) Ingest() *ingest.Hub {
	return s.ingest
}

// Start runs the hubs and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.eventHub.Run(ctx)

	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Warn("web server shutdown error", "component", "web", "error", err)
		}
	}()

	log.Info("web server listening", "component", "web", "addr", ":"+s.port)
	if err := s.app.Listen(":" + s.port); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// OnStatus broadcasts a tracker status snapshot to dashboards and records
// state changes as events. It implements tracking.StatusListener.
func (s *Server) OnStatus(st tracking.Status) {
	msg, err := protocol.NewMessage(protocol.TypeStatus, st)
	if err == nil {
		s.statusHub.BroadcastMessage(msg)
	}

	// Compare the text stem so tracking coordinates don't flood events.
	text := st.Text
	if i := strings.Index(text, ":"); i >= 0 {
		text = text[:i]
	}

	s.statusMu.Lock()
	changed := st.State != s.lastState || text != s.lastText
	s.lastState, s.lastText = st.State, text
	s.statusMu.Unlock()

	if changed {
		s.AddEvent("tracking", st.Text)
	}
}

// AddEvent records an event and broadcasts it to clients.
func (s *Server) AddEvent(eventType, message string) {
	entry := Event{
		Time:    time.Now().Format("15:04:05"),
		Type:    eventType,
		Message: message,
	}

	s.eventsMu.Lock()
	s.events = append(s.events, entry)
	if len(s.events) > maxEvents {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()

	msg, err := protocol.NewMessage(protocol.TypeEvent, entry)
	if err == nil {
		s.eventHub.BroadcastMessage(msg)
	}
}

// Events returns a copy of the event buffer.
func (s *Server) Events() []Event {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
