package tracking

import "time"

// TuningParams holds the real-time adjustable pipeline parameters.
// These can be modified via the tuning API without restarting.
type TuningParams struct {
	Deadband           float64 `json:"deadband"`            // Output units
	Alpha              float64 `json:"alpha"`               // EMA retention (0.5=responsive, 0.9=smooth)
	EmitIntervalMS     int     `json:"emit_interval_ms"`    // Minimum time between control lines
	ReacquireThreshold float64 `json:"reacquire_threshold"` // Squared normalized distance
	FilterEnabled      *bool   `json:"filter_enabled,omitempty"`
}

// GetTuningParams returns the current tuning parameters.
func (t *Tracker) GetTuningParams() TuningParams {
	t.mu.Lock()
	defer t.mu.Unlock()

	enabled := t.config.FilterEnabled
	return TuningParams{
		Deadband:           t.config.Deadband,
		Alpha:              t.config.Alpha,
		EmitIntervalMS:     int(t.config.EmitInterval / time.Millisecond),
		ReacquireThreshold: t.config.ReacquireThreshold,
		FilterEnabled:      &enabled,
	}
}

// SetTuningParams updates tuning parameters at runtime.
// Only positive values are applied.
func (t *Tracker) SetTuningParams(params TuningParams) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if params.Deadband > 0 {
		t.config.Deadband = params.Deadband
	}
	if params.Alpha > 0 {
		t.config.Alpha = clamp(params.Alpha, 0.0, 0.99)
	}
	t.filter.SetParams(t.config.Deadband, t.config.Alpha)

	if params.EmitIntervalMS > 0 {
		t.config.EmitInterval = time.Duration(params.EmitIntervalMS) * time.Millisecond
		t.emitter.SetInterval(t.config.EmitInterval)
	}
	if params.ReacquireThreshold > 0 {
		t.config.ReacquireThreshold = params.ReacquireThreshold
		t.target.SetThreshold(params.ReacquireThreshold)
	}
	if params.FilterEnabled != nil && *params.FilterEnabled != t.config.FilterEnabled {
		t.config.FilterEnabled = *params.FilterEnabled
		t.filter.Reset()
	}
}
