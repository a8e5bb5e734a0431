package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// envOverrides are process-environment settings that take precedence over
// the config file. Pointer fields stay nil when the variable is unset.
type envOverrides struct {
	Enabled     *bool   `env:"SIGNALHUB_DICTATION_ENABLED"`
	Shortcut    *string `env:"SIGNALHUB_DICTATION_SHORTCUT"`
	EndpointURL *string `env:"SIGNALHUB_DICTATION_ENDPOINT"`
	AudioInput  *string `env:"SIGNALHUB_DICTATION_AUDIO_INPUT"`
}

// applyEnv layers environment overrides onto cfg and reports whether any
// value changed.
func applyEnv(cfg *Config) (bool, error) {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return false, fmt.Errorf("parse environment overrides: %w", err)
	}

	changed := false
	if overrides.Enabled != nil {
		cfg.Dictation.Enabled = *overrides.Enabled
		changed = true
	}
	if overrides.Shortcut != nil {
		cfg.Dictation.Shortcut = *overrides.Shortcut
		changed = true
	}
	if overrides.EndpointURL != nil {
		cfg.Endpoint.URL = *overrides.EndpointURL
		changed = true
	}
	if overrides.AudioInput != nil {
		cfg.Audio.Input = *overrides.AudioInput
		changed = true
	}
	return changed, nil
}
