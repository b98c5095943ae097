package tracking

import (
	"math"
	"testing"
)

func TestSignalFilterDeadbandEMA(t *testing.T) {
	f := NewSignalFilter(2, DefaultDeadband, DefaultAlpha)

	inputs := []float64{100, 100, 100, 300}
	wants := []float64{100, 100, 100, 140}

	for i, in := range inputs {
		got := f.Update(Vec3{X: in, Y: in})
		if math.Abs(got.X-wants[i]) > 1e-9 || math.Abs(got.Y-wants[i]) > 1e-9 {
			t.Errorf("step %d: Update(%v) = %v, want %v", i, in, got, wants[i])
		}
	}
}

func TestSignalFilterHoldsWithinDeadband(t *testing.T) {
	f := NewSignalFilter(2, 10, 0.8)
	f.Update(Vec3{X: 50, Y: 50})

	for _, v := range []Vec3{{X: 59, Y: 41}, {X: 60, Y: 60}, {X: 40, Y: 50}} {
		if got := f.Update(v); got.X != 50 || got.Y != 50 {
			t.Errorf("Update(%v) = %v, want held (50, 50)", v, got)
		}
	}
}

func TestSignalFilterCoupledAxes(t *testing.T) {
	f := NewSignalFilter(3, 10, 0.8)
	f.Update(Vec3{X: 100, Y: 100, Z: 100})

	// only Z exceeds the deadband, every axis is smoothed
	got := f.Update(Vec3{X: 105, Y: 95, Z: 200})
	want := Vec3{X: 101, Y: 99, Z: 120}
	if math.Abs(got.X-want.X) > 1e-9 || math.Abs(got.Y-want.Y) > 1e-9 || math.Abs(got.Z-want.Z) > 1e-9 {
		t.Errorf("Update() = %v, want %v", got, want)
	}
}

func TestSignalFilterIgnoresZIn2D(t *testing.T) {
	f := NewSignalFilter(2, 10, 0.8)
	f.Update(Vec3{X: 100, Y: 100})

	if got := f.Update(Vec3{X: 100, Y: 100, Z: 999}); got.X != 100 || got.Z != 0 {
		t.Errorf("Update() = %v, want Z ignored", got)
	}
}

func TestSignalFilterReset(t *testing.T) {
	f := NewSignalFilter(2, 10, 0.8)
	f.Update(Vec3{X: 100, Y: 100})
	f.Reset()

	if f.Valid() {
		t.Fatal("filter should be unset after Reset")
	}
	if got := f.Update(Vec3{X: 700, Y: 20}); got.X != 700 || got.Y != 20 {
		t.Errorf("first sample after reset = %v, want raw", got)
	}
}
