package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-follow/internal/log"
	"github.com/teslashibe/go-follow/pkg/camera"
	"github.com/teslashibe/go-follow/pkg/hub"
	"github.com/teslashibe/go-follow/pkg/ingest"
	"github.com/teslashibe/go-follow/pkg/landmark"
	"github.com/teslashibe/go-follow/pkg/protocol"
	"github.com/teslashibe/go-follow/pkg/tracking"
	"github.com/teslashibe/go-follow/pkg/transport"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Tracking  tracking.Status  `json:"tracking"`
	Transport *transport.Stats `json:"transport,omitempty"`
	Ingest    ingest.Stats     `json:"ingest"`
	Feeds     []hub.Stats      `json:"feeds"`
}

// handleStatus returns the pipeline status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := StatusResponse{
		Tracking: s.tracker.Status(),
		Ingest:   s.ingest.GetStats(),
		Feeds:    []hub.Stats{s.statusHub.Stats(), s.eventHub.Stats()},
	}
	if r, ok := s.transport.(transport.StatsReporter); ok {
		st := r.Stats()
		resp.Transport = &st
	}
	return c.JSON(resp)
}

// handleGetTuning returns the live tuning parameters
func (s *Server) handleGetTuning(c *fiber.Ctx) error {
	return c.JSON(s.tracker.GetTuningParams())
}

// handleSetTuning applies tuning parameters; zero fields are left unchanged
func (s *Server) handleSetTuning(c *fiber.Ctx) error {
	var params tracking.TuningParams
	if err := c.BodyParser(&params); err != nil {
		return badRequest(c, err)
	}
	if params.Deadband < 0 || params.Alpha < 0 || params.EmitIntervalMS < 0 || params.ReacquireThreshold < 0 {
		return badRequest(c, errors.New("tuning values must not be negative"))
	}

	s.tracker.SetTuningParams(params)
	updated := s.tracker.GetTuningParams()
	log.Info("tuning updated", "component", "web",
		"deadband", updated.Deadband, "alpha", updated.Alpha,
		"emit_interval_ms", updated.EmitIntervalMS, "reacquire_threshold", updated.ReacquireThreshold)
	s.AddEvent("config", "tuning updated")
	return c.JSON(updated)
}

// handleViewport records the display size
func (s *Server) handleViewport(c *fiber.Ctx) error {
	var v protocol.ViewportData
	if err := c.BodyParser(&v); err != nil {
		return badRequest(c, err)
	}
	if !(landmark.Viewport{Width: v.Width, Height: v.Height}).Valid() {
		return badRequest(c, errors.New("width and height must be positive"))
	}
	s.tracker.HandleViewport(v.Width, v.Height)
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleTap selects the subject nearest to a tap in view pixels
func (s *Server) handleTap(c *fiber.Ctx) error {
	var tap protocol.TapData
	if err := c.BodyParser(&tap); err != nil {
		return badRequest(c, err)
	}
	selected := s.tracker.HandleTap(tap.X, tap.Y)
	if selected {
		s.AddEvent("tracking", tracking.StatusSelected)
	}
	return c.JSON(fiber.Map{"selected": selected})
}

// handleFrame accepts a single landmark frame over HTTP
func (s *Server) handleFrame(c *fiber.Ctx) error {
	var f landmark.Frame
	if err := c.BodyParser(&f); err != nil {
		return badRequest(c, err)
	}
	if err := protocol.ValidateFrame(&f); err != nil {
		return badRequest(c, err)
	}
	s.frames.Publish(&f)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "queued"})
}

// handleGetEvents returns recent events
func (s *Server) handleGetEvents(c *fiber.Ctx) error {
	return c.JSON(s.Events())
}

// handlePorts lists devices the transport can connect to
func (s *Server) handlePorts(c *fiber.Ctx) error {
	lister, ok := s.transport.(transport.Lister)
	if !ok {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "transport does not support device listing",
		})
	}
	devices, err := lister.ListDevices()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"devices": devices, "count": len(devices)})
}

// ConnectRequest is the body of POST /api/transport/connect.
type ConnectRequest struct {
	Device string `json:"device"`
}

// handleConnect opens the actuator link
func (s *Server) handleConnect(c *fiber.Ctx) error {
	var req ConnectRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if err := s.transport.Connect(req.Device); err != nil {
		if errors.Is(err, transport.ErrNoDevice) {
			return badRequest(c, err)
		}
		s.AddEvent("error", "connect failed: "+err.Error())
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	s.AddEvent("transport", "connected to "+req.Device)
	return c.JSON(fiber.Map{"status": "connected", "device": req.Device})
}

// handleDisconnect closes the actuator link
func (s *Server) handleDisconnect(c *fiber.Ctx) error {
	if err := s.transport.Disconnect(); err != nil {
		if errors.Is(err, transport.ErrNotConnected) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	s.AddEvent("transport", "disconnected")
	return c.JSON(fiber.Map{"status": "disconnected"})
}

// handleGetCamera returns the capture configuration
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	return c.JSON(s.camera.GetConfig())
}

// handleSetCamera applies a partial capture update or a preset
func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return badRequest(c, err)
	}
	if err := s.camera.UpdateConfig(params); err != nil {
		return badRequest(c, err)
	}
	s.AddEvent("config", "camera updated")
	return c.JSON(s.camera.GetConfig())
}

// handleCameraPresets lists the capture presets
func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"presets": camera.PresetNames()})
}

// handleHubWS attaches a dashboard websocket to h
func (s *Server) handleHubWS(h *hub.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		hub.NewClient(h, c).Run()
	}
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}
