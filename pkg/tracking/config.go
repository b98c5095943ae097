package tracking

import (
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/go-follow/pkg/landmark"
)

// Mode selects one of the pipeline presets.
type Mode string

const (
	ModeHand   Mode = "hand"   // hand center, 0-100, unfiltered
	ModeFace   Mode = "face"   // nose tip, 0-100, unfiltered
	ModeHand3D Mode = "hand3d" // hand center + depth, 0-1000, filtered
)

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeHand, ModeFace, ModeHand3D:
		return m, nil
	}
	return "", fmt.Errorf("unknown tracking mode %q", s)
}

// Config holds all parameters of the tracking pipeline. One Config drives
// every mode; the presets below differ only in values.
type Config struct {
	Mode Mode

	// Target association
	AnchorIndices      []int   // Landmarks averaged into the target center
	ReacquireThreshold float64 // Compared against squared normalized distance

	// Output
	Dims      int     // 2 (x,y) or 3 (x,y,depth)
	OutputMax float64 // Upper bound of every output axis

	// Depth (Dims == 3)
	DepthFrom  int
	DepthTo    int
	DepthScale float64

	// Filtering
	FilterEnabled bool
	Deadband      float64 // Output units
	Alpha         float64 // EMA retention (weight of previous output)

	// Emission
	EmitInterval time.Duration
}

// Shared defaults.
const (
	DefaultReacquireThreshold = 0.2
	DefaultDeadband           = 10.0
	DefaultAlpha              = 0.8
	DefaultDepthScale         = 2000.0
	DefaultEmitInterval       = 100 * time.Millisecond
)

// DefaultConfig returns the basic hand-following configuration.
func DefaultConfig() Config {
	return HandConfig()
}

// HandConfig follows the palm center and emits percent coordinates.
func HandConfig() Config {
	return Config{
		Mode:               ModeHand,
		AnchorIndices:      []int{landmark.IndexMCP, landmark.RingMCP},
		ReacquireThreshold: DefaultReacquireThreshold,
		Dims:               2,
		OutputMax:          PercentMax,
		DepthFrom:          landmark.Wrist,
		DepthTo:            landmark.MiddleTip,
		DepthScale:         DefaultDepthScale,
		FilterEnabled:      false,
		Deadband:           DefaultDeadband,
		Alpha:              DefaultAlpha,
		EmitInterval:       DefaultEmitInterval,
	}
}

// FaceConfig follows the nose tip of a face mesh.
func FaceConfig() Config {
	cfg := HandConfig()
	cfg.Mode = ModeFace
	cfg.AnchorIndices = []int{landmark.FaceMeshNoseTip}
	return cfg
}

// ExtendedHandConfig adds a depth axis, fine-grained output and smoothing.
func ExtendedHandConfig() Config {
	cfg := HandConfig()
	cfg.Mode = ModeHand3D
	cfg.Dims = 3
	cfg.OutputMax = FineMax
	cfg.FilterEnabled = true
	return cfg
}

// ConfigForMode returns the preset for m.
func ConfigForMode(m Mode) (Config, error) {
	switch m {
	case ModeHand:
		return HandConfig(), nil
	case ModeFace:
		return FaceConfig(), nil
	case ModeHand3D:
		return ExtendedHandConfig(), nil
	}
	return Config{}, fmt.Errorf("unknown tracking mode %q", m)
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if len(c.AnchorIndices) == 0 {
		return fmt.Errorf("tracking: no anchor indices")
	}
	if c.Dims != 2 && c.Dims != 3 {
		return fmt.Errorf("tracking: dims must be 2 or 3, got %d", c.Dims)
	}
	if c.OutputMax <= 0 {
		return fmt.Errorf("tracking: output max must be positive")
	}
	if c.ReacquireThreshold <= 0 {
		return fmt.Errorf("tracking: reacquire threshold must be positive")
	}
	if c.Alpha < 0 || c.Alpha >= 1 {
		return fmt.Errorf("tracking: alpha must be in [0, 1), got %v", c.Alpha)
	}
	if c.Deadband < 0 {
		return fmt.Errorf("tracking: negative deadband")
	}
	if c.EmitInterval < 0 {
		return fmt.Errorf("tracking: negative emit interval")
	}
	return nil
}
