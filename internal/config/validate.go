package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sbpk516/signalhub-dictation/internal/shortcut"
)

// Validate enforces config invariants and returns non-fatal warnings. The
// dictation shortcut is normalized in place so downstream consumers always
// see canonical chord form.
func Validate(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	result := shortcut.Validate(cfg.Dictation.Shortcut)
	if !result.IsValid {
		return nil, fmt.Errorf("dictation.shortcut %q: %s", cfg.Dictation.Shortcut, result.Validation.Message)
	}
	if result.Validation != nil {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("dictation.shortcut: %s", result.Validation.Message)})
	}
	cfg.Dictation.Shortcut = result.Normalized

	endpoint := strings.TrimSpace(cfg.Endpoint.URL)
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint.url must not be empty")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("endpoint.url %q must be an absolute http(s) URL", endpoint)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("endpoint.url scheme must be http or https")
	}
	if !strings.HasPrefix(strings.TrimSpace(cfg.Endpoint.TranscribePath), "/") {
		return nil, fmt.Errorf("endpoint.transcribe_path must start with '/'")
	}
	if !strings.HasPrefix(strings.TrimSpace(cfg.Endpoint.HealthPath), "/") {
		return nil, fmt.Errorf("endpoint.health_path must start with '/'")
	}

	if cfg.Capture.WatchdogSeconds <= 0 {
		return nil, fmt.Errorf("capture.watchdog_seconds must be > 0")
	}
	for _, mime := range cfg.Capture.MimePreference {
		if !strings.HasPrefix(mime, "audio/") {
			return nil, fmt.Errorf("capture.mime_preference entry %q is not an audio type", mime)
		}
	}

	if cfg.Upload.MaxAttempts <= 0 {
		return nil, fmt.Errorf("upload.max_attempts must be > 0")
	}
	if cfg.Upload.BackoffMS <= 0 {
		return nil, fmt.Errorf("upload.backoff_ms must be > 0")
	}
	if cfg.Upload.TimeoutMS <= 0 {
		return nil, fmt.Errorf("upload.timeout_ms must be > 0")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if len(cfg.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd must not be empty")
	}
	if cfg.Bridge.Raw != "" && len(cfg.Bridge.Argv) == 0 {
		return nil, fmt.Errorf("bridge_cmd is configured but empty")
	}
	if len(cfg.Bridge.Argv) == 0 {
		warnings = append(warnings, Warning{Message: "bridge_cmd is unset; transcripts fall back to the clipboard"})
	}

	return warnings, nil
}
