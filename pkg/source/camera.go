package source

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-follow/internal/log"
	"github.com/teslashibe/go-follow/pkg/camera"
	"github.com/teslashibe/go-follow/pkg/landmark"
	"github.com/teslashibe/go-follow/pkg/tracking/detection"
)

// maxReadMisses ends a capture session after this many consecutive empty reads.
const maxReadMisses = 30

// Camera captures from a local camera, runs face detection and publishes
// one frame per captured image.
type Camera struct {
	manager  *camera.Manager
	detector detection.Detector
	disp     *Dispatcher
	id       string

	reopen atomic.Bool
	seq    atomic.Uint64

	captured   atomic.Uint64
	detections atomic.Uint64
	failures   atomic.Uint64
}

// CameraStats is a snapshot of camera source counters.
type CameraStats struct {
	ID         string        `json:"id"`
	Config     camera.Config `json:"config"`
	Captured   uint64        `json:"captured"`
	Detections uint64        `json:"detections"`
	Failures   uint64        `json:"failures"`
}

// NewCamera creates a camera source. Config changes made through manager
// reopen the capture device.
func NewCamera(manager *camera.Manager, detector detection.Detector, out *Mailbox) *Camera {
	c := &Camera{
		manager:  manager,
		detector: detector,
		id:       "camera-" + uuid.NewString()[:8],
	}
	c.disp = NewDispatcher(out, nil, c.id)
	manager.OnConfigChange = func(camera.Config) error {
		c.reopen.Store(true)
		return nil
	}
	return c
}

// ID returns the source ID stamped on published frames.
func (c *Camera) ID() string {
	return c.id
}

// Stats returns a snapshot of the camera counters.
func (c *Camera) Stats() CameraStats {
	return CameraStats{
		ID:         c.id,
		Config:     c.manager.GetConfig(),
		Captured:   c.captured.Load(),
		Detections: c.detections.Load(),
		Failures:   c.failures.Load(),
	}
}

// Run captures until ctx ends. The device is reopened after a config
// change or a run of failed reads.
func (c *Camera) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Warn("camera session ended", "component", "source", "source_id", c.id, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

func (c *Camera) session(ctx context.Context) error {
	cfg := c.manager.GetConfig()
	c.reopen.Store(false)

	vc, err := gocv.VideoCaptureDevice(cfg.Device)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", cfg.Device, err)
	}
	defer vc.Close()

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	log.Info("camera opened", "component", "source", "source_id", c.id,
		"device", cfg.Device, "width", cfg.Width, "height", cfg.Height, "mirror", cfg.Mirror)

	img := gocv.NewMat()
	defer img.Close()

	misses := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		if c.reopen.Load() {
			log.Info("camera config changed, reopening", "component", "source", "source_id", c.id)
			return nil
		}

		if ok := vc.Read(&img); !ok || img.Empty() {
			misses++
			c.failures.Add(1)
			if misses >= maxReadMisses {
				return fmt.Errorf("camera %d: %d consecutive empty reads", cfg.Device, misses)
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		misses = 0
		c.captured.Add(1)

		dets, err := c.detector.Detect(img)
		if err != nil {
			c.failures.Add(1)
			log.Debug("detection failed", "component", "source", "source_id", c.id, "error", err)
			continue
		}
		c.detections.Add(uint64(len(dets)))

		f := buildCameraFrame(dets, cfg, img.Cols(), img.Rows(), c.seq.Add(1), time.Now())
		c.disp.Publish(f)
	}
}

// buildCameraFrame ranks detections, keeps the best cfg.MaxSubjects and
// mirrors them if configured.
func buildCameraFrame(dets []detection.Detection, cfg camera.Config, w, h int, seq uint64, at time.Time) *landmark.Frame {
	detection.Rank(dets)
	if cfg.MaxSubjects > 0 && len(dets) > cfg.MaxSubjects {
		dets = dets[:cfg.MaxSubjects]
	}
	f := detection.ToFrame(dets, w, h, seq, at)
	if cfg.Mirror {
		for i, s := range f.Sets {
			f.Sets[i] = mirrorSet(s)
		}
	}
	return f
}

func mirrorSet(s landmark.Set) landmark.Set {
	out := make(landmark.Set, len(s))
	for i, p := range s {
		out[i] = landmark.Point{X: 1 - p.X, Y: p.Y, Z: p.Z}
	}
	return out
}
