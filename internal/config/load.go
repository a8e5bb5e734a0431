package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded captures the resolved config path, parsed values, and non-fatal
// warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
// SIGNALHUB_DICTATION_* environment variables override file values.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	exists := true
	var warnings []Warning

	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
		}
		exists = false
		content = nil
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	}

	cfg, parseWarnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}
	warnings = append(warnings, parseWarnings...)

	changed, err := applyEnv(&cfg)
	if err != nil {
		return Loaded{}, err
	}
	if changed {
		envWarnings, err := Validate(&cfg)
		if err != nil {
			return Loaded{}, fmt.Errorf("environment overrides: %w", err)
		}
		warnings = append(warnings, envWarnings...)
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   exists,
	}, nil
}
