// Package landmark defines the detection data passed from landmark sources
// into the tracking pipeline.
//
// Coordinates are normalized to the source image: (0,0) is the top-left
// corner and (1,1) the bottom-right. Z is carried through but not used for
// positioning.
package landmark

import "time"

// Point is a single landmark in normalized image space.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z,omitempty" msgpack:"z"`
}

// Set is the ordered landmark list for one detected subject.
// Index positions are fixed per detector (see the index constants).
type Set []Point

// Has reports whether index i is present in the set.
func (s Set) Has(i int) bool {
	return i >= 0 && i < len(s)
}

// Anchor returns the mean position of the given indices. It returns false
// when indices is empty or any index is missing from the set.
func (s Set) Anchor(indices []int) (Point, bool) {
	if len(indices) == 0 {
		return Point{}, false
	}
	var sum Point
	for _, i := range indices {
		if !s.Has(i) {
			return Point{}, false
		}
		sum.X += s[i].X
		sum.Y += s[i].Y
		sum.Z += s[i].Z
	}
	n := float64(len(indices))
	return Point{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}, true
}

// Frame is one detection result. It replaces the previous frame wholesale.
type Frame struct {
	Sets        []Set     `json:"sets" msgpack:"sets"`
	ImageWidth  int       `json:"image_width" msgpack:"image_width"`
	ImageHeight int       `json:"image_height" msgpack:"image_height"`
	Seq         uint64    `json:"seq,omitempty" msgpack:"seq"`
	CapturedAt  time.Time `json:"captured_at,omitempty" msgpack:"captured_at"`
	SourceID    string    `json:"source_id,omitempty" msgpack:"source_id"`
}

// Empty reports whether the frame carries no subjects.
func (f *Frame) Empty() bool {
	return f == nil || len(f.Sets) == 0
}

// Viewport is the display surface the image is fit into, in pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether the viewport has been measured.
func (v Viewport) Valid() bool {
	return v.Width > 0 && v.Height > 0
}
