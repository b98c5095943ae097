package tracking

import "math"

// Vec3 is a control value in output units. Z is unused for 2-axis output.
type Vec3 struct {
	X, Y, Z float64
}

// SignalFilter suppresses jitter with a deadband gate followed by an
// exponential moving average.
//
// The deadband is checked across all active axes: if any axis moves more
// than the deadband, every axis is smoothed together. Otherwise the
// previous output is held.
type SignalFilter struct {
	dims     int
	deadband float64
	alpha    float64

	prev  Vec3
	valid bool
}

// NewSignalFilter creates a filter for 2 or 3 axes.
func NewSignalFilter(dims int, deadband, alpha float64) *SignalFilter {
	return &SignalFilter{
		dims:     dims,
		deadband: deadband,
		alpha:    alpha,
	}
}

// Update feeds one raw sample and returns the filtered value.
func (f *SignalFilter) Update(raw Vec3) Vec3 {
	if !f.valid {
		f.prev = raw
		if f.dims < 3 {
			f.prev.Z = 0
		}
		f.valid = true
		return f.prev
	}

	if !f.exceedsDeadband(raw) {
		return f.prev
	}

	// prev*alpha + raw*(1-alpha), written so unchanged axes stay exact
	k := 1 - f.alpha
	f.prev.X += (raw.X - f.prev.X) * k
	f.prev.Y += (raw.Y - f.prev.Y) * k
	if f.dims == 3 {
		f.prev.Z += (raw.Z - f.prev.Z) * k
	}
	return f.prev
}

// Reset returns the filter to the unset state; the next sample passes
// through unsmoothed.
func (f *SignalFilter) Reset() {
	f.prev = Vec3{}
	f.valid = false
}

// Valid reports whether the filter holds a previous output.
func (f *SignalFilter) Valid() bool {
	return f.valid
}

// SetParams updates the deadband and alpha.
func (f *SignalFilter) SetParams(deadband, alpha float64) {
	f.deadband = deadband
	f.alpha = alpha
}

func (f *SignalFilter) exceedsDeadband(raw Vec3) bool {
	if math.Abs(raw.X-f.prev.X) > f.deadband || math.Abs(raw.Y-f.prev.Y) > f.deadband {
		return true
	}
	return f.dims == 3 && math.Abs(raw.Z-f.prev.Z) > f.deadband
}
