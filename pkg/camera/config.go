// Package camera provides runtime-configurable capture settings for the
// local camera landmark source.
package camera

import "fmt"

// Config holds all capture configuration parameters.
// These can be modified via the camera API at runtime.
type Config struct {
	// === Device ===
	Device int `json:"device"` // OpenCV device index

	// === Resolution ===
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Target FPS

	// Mirror flips landmarks horizontally, for front-facing cameras whose
	// preview is shown mirrored.
	Mirror bool `json:"mirror"`

	// MaxSubjects caps the faces forwarded per frame.
	MaxSubjects int `json:"max_subjects"`
}

// Capture limits
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
	MaxSubjects  = 5
)

// DefaultConfig returns the recommended configuration for a front-facing
// webcam. 640x480 keeps detection fast on a laptop CPU.
func DefaultConfig() Config {
	return Config{
		Device:      0,
		Width:       640,
		Height:      480,
		Framerate:   30,
		Mirror:      true,
		MaxSubjects: MaxSubjects,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must be 0 or greater")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.MaxSubjects < 1 || c.MaxSubjects > MaxSubjects {
		errors = append(errors, fmt.Sprintf("max_subjects must be between 1 and %d", MaxSubjects))
	}

	return errors
}
