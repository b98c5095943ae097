package tracking

import (
	"gonum.org/v1/gonum/floats"

	"github.com/teslashibe/go-follow/pkg/landmark"
)

// EstimateDepth returns the normalized (x, y) distance between two
// landmarks of a set. A larger value means the subject appears larger,
// hence closer. The result is unscaled.
func EstimateDepth(set landmark.Set, from, to int) (float64, bool) {
	if !set.Has(from) || !set.Has(to) {
		return 0, false
	}
	a := []float64{set[from].X, set[from].Y}
	b := []float64{set[to].X, set[to].Y}
	return floats.Distance(a, b, 2), true
}
