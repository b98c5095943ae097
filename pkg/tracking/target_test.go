package tracking

import (
	"testing"

	"github.com/teslashibe/go-follow/pkg/landmark"
)

// frameOf builds a frame of single-landmark subjects.
func frameOf(points ...landmark.Point) *landmark.Frame {
	f := &landmark.Frame{ImageWidth: 640, ImageHeight: 480}
	for _, p := range points {
		f.Sets = append(f.Sets, landmark.Set{p})
	}
	return f
}

func TestTargetTrackerLifecycle(t *testing.T) {
	tr := NewTargetTracker([]int{0}, DefaultReacquireThreshold)

	// frame 1: acquire
	if got := tr.Update(frameOf(landmark.Point{X: 0.5, Y: 0.5})); got != TransitionAcquired {
		t.Fatalf("frame 1 transition = %v, want acquired", got)
	}
	if c, ok := tr.Center(); !ok || c.X != 0.5 || c.Y != 0.5 {
		t.Fatalf("frame 1 center = %v, %v", c, ok)
	}

	// frame 2: squared distance 0.0008
	if got := tr.Update(frameOf(landmark.Point{X: 0.52, Y: 0.52})); got != TransitionNone {
		t.Fatalf("frame 2 transition = %v, want none", got)
	}
	if c, _ := tr.Center(); c.X != 0.52 || c.Y != 0.52 {
		t.Errorf("frame 2 center = %v, want (0.52, 0.52)", c)
	}
	if tr.State() != Tracking {
		t.Errorf("frame 2 state = %v, want tracking", tr.State())
	}

	// frame 3: squared distance 0.48^2*2 ≈ 0.46
	if got := tr.Update(frameOf(landmark.Point{X: 1.0, Y: 1.0})); got != TransitionLost {
		t.Fatalf("frame 3 transition = %v, want lost", got)
	}
	if _, ok := tr.Center(); ok {
		t.Error("frame 3 should clear the center")
	}
	if tr.Matched() != nil {
		t.Error("frame 3 should clear the matched set")
	}
}

// The threshold applies to the squared distance, so the effective radius
// is sqrt(0.2) ≈ 0.447 normalized units.
func TestTargetTrackerThresholdIsSquared(t *testing.T) {
	tests := []struct {
		name string
		next landmark.Point
		keep bool
	}{
		{"distance 0.3 is kept", landmark.Point{X: 0.8, Y: 0.5}, true},
		{"distance 0.44 is kept", landmark.Point{X: 0.94, Y: 0.5}, true},
		{"distance 0.45 is dropped", landmark.Point{X: 0.95, Y: 0.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTargetTracker([]int{0}, DefaultReacquireThreshold)
			tr.Update(frameOf(landmark.Point{X: 0.5, Y: 0.5}))
			tr.Update(frameOf(tt.next))
			if got := tr.State() == Tracking; got != tt.keep {
				t.Errorf("tracking = %v, want %v", got, tt.keep)
			}
		})
	}
}

func TestTargetTrackerNearestWins(t *testing.T) {
	tr := NewTargetTracker([]int{0}, DefaultReacquireThreshold)
	tr.Update(frameOf(landmark.Point{X: 0.3, Y: 0.3}))

	f := frameOf(
		landmark.Point{X: 0.6, Y: 0.6},
		landmark.Point{X: 0.32, Y: 0.31},
		landmark.Point{X: 0.1, Y: 0.1},
	)
	tr.Update(f)

	if c, _ := tr.Center(); c.X != 0.32 || c.Y != 0.31 {
		t.Errorf("center = %v, want nearest (0.32, 0.31)", c)
	}
	if m := tr.Matched(); len(m) != 1 || m[0].X != 0.32 {
		t.Errorf("matched = %v", m)
	}
}

func TestTargetTrackerTieKeepsFirst(t *testing.T) {
	tr := NewTargetTracker([]int{0}, DefaultReacquireThreshold)
	tr.Update(frameOf(landmark.Point{X: 0.5, Y: 0.5}))

	tr.Update(frameOf(landmark.Point{X: 0.4, Y: 0.5}, landmark.Point{X: 0.6, Y: 0.5}))

	if c, _ := tr.Center(); c.X != 0.4 {
		t.Errorf("center = %v, want first of equal candidates", c)
	}
}

func TestTargetTrackerSeedsFromFirstSubject(t *testing.T) {
	tr := NewTargetTracker([]int{0}, DefaultReacquireThreshold)

	tr.Update(frameOf(landmark.Point{X: 0.9, Y: 0.9}, landmark.Point{X: 0.1, Y: 0.1}))

	if c, _ := tr.Center(); c.X != 0.9 || c.Y != 0.9 {
		t.Errorf("center = %v, want first subject", c)
	}
}

func TestTargetTrackerEmptyFrame(t *testing.T) {
	tr := NewTargetTracker([]int{0}, DefaultReacquireThreshold)

	if got := tr.Update(frameOf()); got != TransitionNone {
		t.Errorf("empty frame while unset = %v, want none", got)
	}

	tr.Update(frameOf(landmark.Point{X: 0.5, Y: 0.5}))
	if got := tr.Update(frameOf()); got != TransitionLost {
		t.Errorf("empty frame while tracking = %v, want lost", got)
	}
}

func TestTargetTrackerSkipsSetsWithoutAnchor(t *testing.T) {
	tr := NewTargetTracker([]int{landmark.IndexMCP, landmark.RingMCP}, DefaultReacquireThreshold)

	short := landmark.Set{{X: 0.1, Y: 0.1}}
	hand := make(landmark.Set, landmark.HandPoints)
	hand[landmark.IndexMCP] = landmark.Point{X: 0.4, Y: 0.5}
	hand[landmark.RingMCP] = landmark.Point{X: 0.6, Y: 0.5}

	f := &landmark.Frame{Sets: []landmark.Set{short, hand}, ImageWidth: 640, ImageHeight: 480}
	if got := tr.Update(f); got != TransitionAcquired {
		t.Fatalf("transition = %v, want acquired", got)
	}
	if c, _ := tr.Center(); c.X != 0.5 || c.Y != 0.5 {
		t.Errorf("center = %v, want palm midpoint (0.5, 0.5)", c)
	}

	f = &landmark.Frame{Sets: []landmark.Set{short}, ImageWidth: 640, ImageHeight: 480}
	if got := tr.Update(f); got != TransitionLost {
		t.Errorf("frame without usable subject = %v, want lost", got)
	}
}

func TestTargetTrackerSelect(t *testing.T) {
	view := landmark.Viewport{Width: 640, Height: 480}
	tr := NewTargetTracker([]int{0}, DefaultReacquireThreshold)

	f := frameOf(landmark.Point{X: 0.1, Y: 0.1}, landmark.Point{X: 0.9, Y: 0.9})
	tr.Update(f)

	// far beyond the reacquire radius, tap still wins
	if !tr.Select(landmark.Point{X: 600, Y: 450}, f, view) {
		t.Fatal("Select() = false")
	}
	if c, _ := tr.Center(); c.X != 0.9 || c.Y != 0.9 {
		t.Errorf("center = %v, want tapped subject", c)
	}

	if tr.Select(landmark.Point{X: 1, Y: 1}, frameOf(), view) {
		t.Error("Select() on empty frame should be a no-op")
	}
	if c, _ := tr.Center(); c.X != 0.9 {
		t.Errorf("no-op select changed center to %v", c)
	}
}

func TestTargetTrackerSelectFromUnset(t *testing.T) {
	view := landmark.Viewport{Width: 640, Height: 480}
	tr := NewTargetTracker([]int{0}, DefaultReacquireThreshold)

	f := frameOf(landmark.Point{X: 0.2, Y: 0.2}, landmark.Point{X: 0.8, Y: 0.2})
	if !tr.Select(landmark.Point{X: 500, Y: 100}, f, view) {
		t.Fatal("Select() = false")
	}
	if tr.State() != Tracking {
		t.Errorf("state = %v, want tracking", tr.State())
	}
	if c, _ := tr.Center(); c.X != 0.8 {
		t.Errorf("center = %v, want right subject", c)
	}
}
