// Package detection provides face landmark detection using computer vision.
// Results are converted into landmark frames for the tracking pipeline.
package detection

import (
	"sort"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-follow/pkg/landmark"
)

// Detection represents a detected face
type Detection struct {
	X, Y       float64      // Top-left corner (0-1 normalized)
	W, H       float64      // Width and height (0-1 normalized)
	Confidence float64      // Detection confidence (0-1)
	Landmarks  landmark.Set // YuNet points, normalized
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.W * d.H
}

// Detector is the interface for face detection backends
type Detector interface {
	// Detect finds faces in a BGR image
	Detect(img gocv.Mat) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	ModelPath        string  // Path to ONNX model
	ConfidenceThresh float64 // Minimum confidence (default 0.5)
	InputWidth       int     // Model input width
	InputHeight      int     // Model input height
}

// DefaultConfig returns production defaults for YuNet
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// Rank orders detections best first in place.
// Priority: confidence * 0.7 + relative area * 0.3
func Rank(dets []Detection) {
	if len(dets) < 2 {
		return
	}

	maxArea := 0.0
	for _, d := range dets {
		if d.Area() > maxArea {
			maxArea = d.Area()
		}
	}
	score := func(d Detection) float64 {
		if maxArea == 0 {
			return d.Confidence
		}
		return d.Confidence*0.7 + (d.Area()/maxArea)*0.3
	}

	sort.SliceStable(dets, func(i, j int) bool {
		return score(dets[i]) > score(dets[j])
	})
}

// ToFrame converts detections into a landmark frame. Detections without
// landmarks are skipped.
func ToFrame(dets []Detection, imageW, imageH int, seq uint64, at time.Time) *landmark.Frame {
	f := &landmark.Frame{
		ImageWidth:  imageW,
		ImageHeight: imageH,
		Seq:         seq,
		CapturedAt:  at,
	}
	for _, d := range dets {
		if len(d.Landmarks) == 0 {
			continue
		}
		f.Sets = append(f.Sets, d.Landmarks)
	}
	return f
}
