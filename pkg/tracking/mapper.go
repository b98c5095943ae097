package tracking

import (
	"math"

	"github.com/teslashibe/go-follow/pkg/landmark"
)

// CoverScale returns the aspect-fill scale factor: the smallest uniform
// scale at which the image covers the whole view.
func CoverScale(imageW, imageH, viewW, viewH float64) float64 {
	return math.Max(viewW/imageW, viewH/imageH)
}

// MapToView converts a normalized image point to view pixels under
// aspect-fill. The image is scaled to cover the view and centered, so the
// overflowing dimension is cropped evenly on both sides and offsets may be
// negative. Points in the cropped region map outside [0, view).
//
// It returns false if either the image or the view has no area.
func MapToView(p landmark.Point, imageW, imageH int, view landmark.Viewport) (landmark.Point, bool) {
	if imageW <= 0 || imageH <= 0 || !view.Valid() {
		return landmark.Point{}, false
	}

	iw, ih := float64(imageW), float64(imageH)
	scale := CoverScale(iw, ih, view.Width, view.Height)

	scaledW := iw * scale
	scaledH := ih * scale
	offsetX := (view.Width - scaledW) / 2
	offsetY := (view.Height - scaledH) / 2

	return landmark.Point{
		X: p.X*scaledW + offsetX,
		Y: p.Y*scaledH + offsetY,
		Z: p.Z,
	}, true
}
