package camera

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Manager holds the live capture configuration. Updates are serialized and
// validated before they replace the current config.
type Manager struct {
	mu     sync.RWMutex
	config Config
	preset string

	// update serializes read-modify-write cycles so concurrent API calls
	// cannot overwrite each other.
	update sync.Mutex

	// OnConfigChange is called after every accepted change. An error is
	// returned to the caller but does not roll the change back.
	OnConfigChange func(cfg Config) error
}

// NewManager creates a manager with the default preset.
func NewManager() *Manager {
	m := NewManagerWithConfig(DefaultConfig())
	m.preset = PresetDefault
	return m
}

// NewManagerWithConfig creates a manager starting from cfg.
func NewManagerWithConfig(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Preset returns the name of the last preset applied, or "" once any field
// has been changed by hand.
func (m *Manager) Preset() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.preset
}

// SetConfig replaces the configuration.
func (m *Manager) SetConfig(cfg Config) error {
	m.update.Lock()
	defer m.update.Unlock()
	return m.commit(cfg, "")
}

// ApplyPreset replaces the configuration with a named preset, keeping the
// current device index.
func (m *Manager) ApplyPreset(name string) error {
	return m.UpdateConfig(map[string]interface{}{"preset": name})
}

// UpdateConfig changes the fields named in params, as decoded from a JSON
// object. A "preset" key is applied first and other keys override it.
// Unknown keys and mistyped values reject the whole update.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	m.update.Lock()
	defer m.update.Unlock()

	cfg := m.GetConfig()
	preset := ""

	if raw, ok := params["preset"]; ok {
		name, ok := raw.(string)
		if !ok {
			return fmt.Errorf("preset: expected string, got %T", raw)
		}
		p := GetPreset(name)
		if p == nil {
			return fmt.Errorf("unknown preset: %s", name)
		}
		p.Device = cfg.Device
		cfg = *p
		preset = name
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if k != "preset" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := setField(&cfg, key, params[key]); err != nil {
			return err
		}
	}
	if len(keys) > 0 {
		preset = ""
	}

	return m.commit(cfg, preset)
}

// commit validates and stores cfg. Callers hold m.update.
func (m *Manager) commit(cfg Config, preset string) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}

	m.mu.Lock()
	m.config = cfg
	m.preset = preset
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}
	return nil
}

func setField(cfg *Config, key string, value interface{}) error {
	if key == "mirror" {
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("mirror: expected bool, got %T", value)
		}
		cfg.Mirror = v
		return nil
	}

	var dst *int
	switch key {
	case "device":
		dst = &cfg.Device
	case "width":
		dst = &cfg.Width
	case "height":
		dst = &cfg.Height
	case "framerate":
		dst = &cfg.Framerate
	case "max_subjects":
		dst = &cfg.MaxSubjects
	default:
		return fmt.Errorf("unknown camera parameter: %s", key)
	}

	v, ok := toInt(value)
	if !ok {
		return fmt.Errorf("%s: expected integer, got %v", key, value)
	}
	*dst = v
	return nil
}

// toInt accepts integral JSON numbers.
func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) {
			return 0, false
		}
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
