package config

import (
	"fmt"
	"strings"
)

// Parse reads configuration content as a JSONC document layered over base.
// Empty content yields the validated base unchanged.
func Parse(content string, base Config) (Config, []Warning, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		cfg := base
		warnings, err := Validate(&cfg)
		if err != nil {
			return Config{}, nil, err
		}
		return cfg, warnings, nil
	}

	if !strings.HasPrefix(trimmed, "{") {
		return Config{}, nil, fmt.Errorf("config must be a JSONC object starting with '{'")
	}
	return parseJSONC(content, base)
}
