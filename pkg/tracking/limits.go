package tracking

// Output ranges of the control line.
const (
	// PercentMax is the upper bound for hand and face modes.
	PercentMax = 100.0

	// FineMax is the upper bound for extended hand mode.
	FineMax = 1000.0
)

// clamp bounds value to [min, max]. NaN maps to min.
func clamp(value, min, max float64) float64 {
	if value != value || value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
