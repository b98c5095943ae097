package tracking

import (
	"math"

	"github.com/teslashibe/go-follow/pkg/landmark"
)

// TargetState is the association state of the TargetTracker.
type TargetState int

const (
	Unset TargetState = iota
	Tracking
)

func (s TargetState) String() string {
	if s == Tracking {
		return "tracking"
	}
	return "unset"
}

// Transition reports what an Update did to the target.
type Transition int

const (
	TransitionNone     Transition = iota // No state change
	TransitionAcquired                   // Unset → Tracking
	TransitionLost                       // Tracking → Unset
)

func (t Transition) String() string {
	switch t {
	case TransitionAcquired:
		return "acquired"
	case TransitionLost:
		return "lost"
	}
	return "none"
}

// TargetTracker keeps one subject locked across frames by nearest-neighbor
// association of its anchor point.
type TargetTracker struct {
	anchor    []int
	threshold float64

	center   landmark.Point
	tracking bool
	matched  landmark.Set
}

// NewTargetTracker creates a tracker. threshold is compared against the
// squared normalized distance between the previous center and a candidate.
func NewTargetTracker(anchor []int, threshold float64) *TargetTracker {
	return &TargetTracker{
		anchor:    anchor,
		threshold: threshold,
	}
}

// Update associates the frame's subjects with the current target.
//
// With no target, the first subject seeds the center and is then matched
// at distance zero. With a target, the nearest subject (first wins on
// ties) replaces it if its squared distance is below the threshold;
// otherwise the target is dropped.
func (t *TargetTracker) Update(f *landmark.Frame) Transition {
	if f.Empty() {
		return t.drop()
	}

	acquired := false
	if !t.tracking {
		seed, ok := t.firstAnchor(f)
		if !ok {
			return TransitionNone
		}
		t.center = seed
		t.tracking = true
		acquired = true
	}

	best := math.Inf(1)
	var bestCenter landmark.Point
	var bestSet landmark.Set
	for _, s := range f.Sets {
		c, ok := s.Anchor(t.anchor)
		if !ok {
			continue
		}
		dx := c.X - t.center.X
		dy := c.Y - t.center.Y
		if d := dx*dx + dy*dy; d < best {
			best = d
			bestCenter = c
			bestSet = s
		}
	}

	if bestSet == nil || best >= t.threshold {
		return t.drop()
	}

	t.center = bestCenter
	t.matched = bestSet
	if acquired {
		return TransitionAcquired
	}
	return TransitionNone
}

// Select forces the subject nearest to tap (view pixels) to become the
// target, regardless of distance. It returns false and leaves the state
// untouched when the frame has no usable subject.
func (t *TargetTracker) Select(tap landmark.Point, f *landmark.Frame, view landmark.Viewport) bool {
	if f.Empty() {
		return false
	}

	best := math.Inf(1)
	var bestCenter landmark.Point
	var bestSet landmark.Set
	for _, s := range f.Sets {
		c, ok := s.Anchor(t.anchor)
		if !ok {
			continue
		}
		v, ok := MapToView(c, f.ImageWidth, f.ImageHeight, view)
		if !ok {
			return false
		}
		dx := v.X - tap.X
		dy := v.Y - tap.Y
		if d := dx*dx + dy*dy; d < best {
			best = d
			bestCenter = c
			bestSet = s
		}
	}
	if bestSet == nil {
		return false
	}

	t.center = bestCenter
	t.matched = bestSet
	t.tracking = true
	return true
}

// Reset clears the target.
func (t *TargetTracker) Reset() {
	t.center = landmark.Point{}
	t.tracking = false
	t.matched = nil
}

// Center returns the target center in normalized image space.
func (t *TargetTracker) Center() (landmark.Point, bool) {
	return t.center, t.tracking
}

// Matched returns the landmark set last associated with the target.
func (t *TargetTracker) Matched() landmark.Set {
	return t.matched
}

// State returns the association state.
func (t *TargetTracker) State() TargetState {
	if t.tracking {
		return Tracking
	}
	return Unset
}

// SetThreshold updates the reacquire threshold.
func (t *TargetTracker) SetThreshold(threshold float64) {
	t.threshold = threshold
}

func (t *TargetTracker) drop() Transition {
	was := t.tracking
	t.Reset()
	if was {
		return TransitionLost
	}
	return TransitionNone
}

func (t *TargetTracker) firstAnchor(f *landmark.Frame) (landmark.Point, bool) {
	for _, s := range f.Sets {
		if c, ok := s.Anchor(t.anchor); ok {
			return c, true
		}
	}
	return landmark.Point{}, false
}
