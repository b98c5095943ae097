// Package tracking turns per-frame landmark detections into a stable,
// rate-limited control signal for a follow actuator.
//
// A Tracker owns all pipeline state: the locked target, the smoothing
// filter and the emission gate. Frames, viewport changes and taps may
// arrive from different goroutines; the Tracker serializes them.
package tracking

import (
	"context"
	"fmt"
	"sync"

	"github.com/teslashibe/go-follow/internal/log"
	"github.com/teslashibe/go-follow/internal/timeutil"
	"github.com/teslashibe/go-follow/pkg/landmark"
	"github.com/teslashibe/go-follow/pkg/protocol"
)

// FrameSource delivers the most recent detection frame.
type FrameSource interface {
	Next(ctx context.Context) (*landmark.Frame, error)
}

// StatusListener receives a status snapshot after every pipeline cycle.
type StatusListener interface {
	OnStatus(Status)
}

// Status texts.
const (
	StatusIdle        = "waiting for frames"
	StatusNoDetection = "no detection"
	StatusLost        = "target lost, reacquiring"
	StatusNoViewport  = "waiting for viewport"
	StatusSelected    = "target selected"
)

// Status is a snapshot of the pipeline.
type Status struct {
	Mode      Mode              `json:"mode"`
	State     string            `json:"state"`
	Text      string            `json:"text"`
	Center    *landmark.Point   `json:"center,omitempty"`
	Subjects  int               `json:"subjects"`
	Seq       uint64            `json:"seq"`
	Frames    uint64            `json:"frames"`
	Viewport  landmark.Viewport `json:"viewport"`
	Connected bool              `json:"connected"`
	Emitter   EmitterStats      `json:"emitter"`
}

// Tracker is the pipeline controller.
type Tracker struct {
	mu sync.Mutex

	config  Config
	target  *TargetTracker
	filter  *SignalFilter
	emitter *Emitter

	frame    *landmark.Frame
	viewport landmark.Viewport
	frames   uint64
	text     string

	listener StatusListener
}

// New creates a pipeline controller that emits through out.
// A nil clock uses the wall clock.
func New(config Config, out Sender, clock timeutil.Clock) (*Tracker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		config:  config,
		target:  NewTargetTracker(config.AnchorIndices, config.ReacquireThreshold),
		filter:  NewSignalFilter(config.Dims, config.Deadband, config.Alpha),
		emitter: NewEmitter(out, config.EmitInterval, clock),
		text:    StatusIdle,
	}, nil
}

// SetStatusListener sets the dashboard status listener.
func (t *Tracker) SetStatusListener(l StatusListener) {
	t.mu.Lock()
	t.listener = l
	t.mu.Unlock()
}

// SetSender swaps the transport used for emission.
func (t *Tracker) SetSender(out Sender) {
	t.emitter.SetSender(out)
}

// Config returns the active configuration.
func (t *Tracker) Config() Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.config
}

// Run consumes frames from src until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, src FrameSource) error {
	cfg := t.Config()
	log.Info("tracker started",
		"mode", cfg.Mode,
		"dims", cfg.Dims,
		"filter", cfg.FilterEnabled,
		"emit_interval", cfg.EmitInterval)

	for {
		f, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("tracker stopped")
				return nil
			}
			return fmt.Errorf("frame source: %w", err)
		}
		t.HandleFrame(f)
	}
}

// HandleFrame runs one pipeline cycle for a new detection frame.
// Malformed frames are logged and skipped without touching state.
func (t *Tracker) HandleFrame(f *landmark.Frame) {
	if f == nil {
		log.Warn("skipping nil frame", "component", "tracker")
		return
	}
	if err := protocol.ValidateFrame(f); err != nil {
		log.Warn("skipping malformed frame", "component", "tracker", "seq", f.Seq, "error", err)
		return
	}

	t.mu.Lock()
	t.frame = f
	t.frames++

	switch t.target.Update(f) {
	case TransitionAcquired:
		c, _ := t.target.Center()
		log.Info("target acquired", "component", "tracker", "x", c.X, "y", c.Y, "subjects", len(f.Sets))
	case TransitionLost:
		log.Info("target lost", "component", "tracker", "subjects", len(f.Sets))
		t.text = StatusLost
	}
	if t.target.State() == Unset {
		t.filter.Reset()
		if f.Empty() {
			t.text = StatusNoDetection
		}
	}

	t.cycle()
	l, st := t.listener, t.statusLocked()
	t.mu.Unlock()

	if l != nil {
		l.OnStatus(st)
	}
}

// HandleViewport records a new display size and re-evaluates output.
func (t *Tracker) HandleViewport(width, height float64) {
	v := landmark.Viewport{Width: width, Height: height}

	t.mu.Lock()
	if v == t.viewport {
		t.mu.Unlock()
		return
	}
	t.viewport = v
	log.Debug("viewport changed", "component", "tracker", "width", width, "height", height)
	t.cycle()
	l, st := t.listener, t.statusLocked()
	t.mu.Unlock()

	if l != nil {
		l.OnStatus(st)
	}
}

// HandleTap selects the subject nearest to the tap (view pixels) as the
// target. It returns false if there is no frame, no viewport or no
// subject to select.
func (t *Tracker) HandleTap(x, y float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frame == nil || !t.viewport.Valid() {
		return false
	}
	if !t.target.Select(landmark.Point{X: x, Y: y}, t.frame, t.viewport) {
		return false
	}
	c, _ := t.target.Center()
	log.Info("target selected", "component", "tracker", "tap_x", x, "tap_y", y, "x", c.X, "y", c.Y)
	t.text = StatusSelected
	return true
}

// Status returns a snapshot of the pipeline.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

func (t *Tracker) statusLocked() Status {
	st := Status{
		Mode:      t.config.Mode,
		State:     t.target.State().String(),
		Text:      t.text,
		Frames:    t.frames,
		Viewport:  t.viewport,
		Connected: t.emitter.Connected(),
		Emitter:   t.emitter.Stats(),
	}
	if c, ok := t.target.Center(); ok {
		st.Center = &c
	}
	if t.frame != nil {
		st.Subjects = len(t.frame.Sets)
		st.Seq = t.frame.Seq
	}
	return st
}

// cycle emits one control line if the gate is open. Caller holds mu.
func (t *Tracker) cycle() {
	if !t.emitter.Pass() {
		return
	}
	t.emitter.Deliver(t.buildCommand())
}

// buildCommand produces the control line for the current state. Caller
// holds mu.
func (t *Tracker) buildCommand() protocol.Command {
	cfg := t.config
	sentinel := protocol.Sentinel(cfg.Dims)

	center, ok := t.target.Center()
	if !ok || t.frame == nil {
		return sentinel
	}
	if !t.viewport.Valid() {
		t.text = StatusNoViewport
		return sentinel
	}

	v, ok := MapToView(center, t.frame.ImageWidth, t.frame.ImageHeight, t.viewport)
	if !ok {
		return sentinel
	}

	raw := Vec3{
		X: v.X / t.viewport.Width * cfg.OutputMax,
		Y: v.Y / t.viewport.Height * cfg.OutputMax,
	}
	if cfg.Dims == 3 {
		if d, ok := EstimateDepth(t.target.Matched(), cfg.DepthFrom, cfg.DepthTo); ok {
			raw.Z = d * cfg.DepthScale
		}
	}

	// Bound the raw sample first so a far off-screen point cannot leave
	// the filter holding an infinite value.
	raw = Vec3{
		X: clamp(raw.X, 0, cfg.OutputMax),
		Y: clamp(raw.Y, 0, cfg.OutputMax),
		Z: clamp(raw.Z, 0, cfg.OutputMax),
	}

	out := raw
	if cfg.FilterEnabled {
		out = t.filter.Update(raw)
	}

	cmd := protocol.Command{
		X:    int(clamp(out.X, 0, cfg.OutputMax)),
		Y:    int(clamp(out.Y, 0, cfg.OutputMax)),
		Dims: cfg.Dims,
	}
	if cfg.Dims == 3 {
		cmd.Z = int(clamp(out.Z, 0, cfg.OutputMax))
		t.text = fmt.Sprintf("tracking: %d, %d, z %d", cmd.X, cmd.Y, cmd.Z)
	} else {
		t.text = fmt.Sprintf("tracking: %d, %d", cmd.X, cmd.Y)
	}
	return cmd
}
