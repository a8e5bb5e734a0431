package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	warnings, err := Validate(&cfg)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, "Control+Shift+Space", cfg.Dictation.Shortcut)
}

func TestParseEmptyContentReturnsDefaults(t *testing.T) {
	cfg, _, err := Parse("", Default())
	require.NoError(t, err)
	require.Equal(t, Default().Endpoint, cfg.Endpoint)
}

func TestParseJSONCLayersOverDefaults(t *testing.T) {
	content := `{
		// local dev server
		"endpoint": {
			"url": "http://localhost:9999",
		},
		"dictation": { "shortcut": "cmd+shift+d" },
		"upload": { "max_attempts": 5 },
		/* keep sounds off at work */
		"indicator": { "sound_enable": false },
	}`

	cfg, warnings, err := Parse(content, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, "http://localhost:9999", cfg.Endpoint.URL)
	require.Equal(t, "/dictation/transcribe", cfg.Endpoint.TranscribePath)
	require.Equal(t, "Command+Shift+D", cfg.Dictation.Shortcut)
	require.Equal(t, 5, cfg.Upload.MaxAttempts)
	require.False(t, cfg.Indicator.SoundEnable)
	require.True(t, cfg.Indicator.Enable)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, _, err := Parse(`{"surprise": true}`, Default())
	require.Error(t, err)
}

func TestParseRejectsNonObjectContent(t *testing.T) {
	_, _, err := Parse("shortcut=ctrl+space", Default())
	require.ErrorContains(t, err, "JSONC object")
}

func TestParseInvalidShortcutIsHardError(t *testing.T) {
	_, _, err := Parse(`{"dictation": {"shortcut": "A+B"}}`, Default())
	require.ErrorContains(t, err, "dictation.shortcut")
}

func TestParseDuplicateModifiersWarn(t *testing.T) {
	cfg, warnings, err := Parse(`{"dictation": {"shortcut": "cmd+command+shift"}}`, Default())
	require.NoError(t, err)
	require.Equal(t, "Command+Shift", cfg.Dictation.Shortcut)
	require.NotEmpty(t, warnings)
	require.Contains(t, warnings[0].Message, "duplicate modifiers")
}

func TestParseCommandFields(t *testing.T) {
	cfg, _, err := Parse(`{
		"clipboard_cmd": "xclip -selection clipboard",
		"bridge_cmd": "ydotool type --file -"
	}`, Default())
	require.NoError(t, err)
	require.Equal(t, []string{"xclip", "-selection", "clipboard"}, cfg.Clipboard.Argv)
	require.Equal(t, []string{"ydotool", "type", "--file", "-"}, cfg.Bridge.Argv)
}

func TestParseEmptyBridgeWarnsClipboardFallback(t *testing.T) {
	cfg, warnings, err := Parse(`{"bridge_cmd": ""}`, Default())
	require.NoError(t, err)
	require.Empty(t, cfg.Bridge.Argv)

	found := false
	for _, w := range warnings {
		if w.Message == "bridge_cmd is unset; transcripts fall back to the clipboard" {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidateEndpointRules(t *testing.T) {
	cfg := Default()
	cfg.Endpoint.URL = "not a url"
	_, err := Validate(&cfg)
	require.ErrorContains(t, err, "endpoint.url")

	cfg = Default()
	cfg.Endpoint.HealthPath = "health"
	_, err = Validate(&cfg)
	require.ErrorContains(t, err, "health_path")

	cfg = Default()
	cfg.Capture.WatchdogSeconds = 0
	_, err = Validate(&cfg)
	require.ErrorContains(t, err, "watchdog_seconds")

	cfg = Default()
	cfg.Indicator.Backend = "wayland"
	_, err = Validate(&cfg)
	require.ErrorContains(t, err, "indicator.backend")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "config.conf"))
	require.NoError(t, err)
	require.False(t, loaded.Exists)
	require.Equal(t, Default().Endpoint, loaded.Config.Endpoint)
	require.NotEmpty(t, loaded.Warnings)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.conf")
	require.NoError(t, os.WriteFile(path, []byte(`{"dictation": {"enabled": false}}`), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.False(t, loaded.Config.Dictation.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SIGNALHUB_DICTATION_ENABLED", "false")
	t.Setenv("SIGNALHUB_DICTATION_ENDPOINT", "http://10.0.0.2:8001")
	t.Setenv("SIGNALHUB_DICTATION_SHORTCUT", "ctrl+alt+m")

	loaded, err := Load(filepath.Join(t.TempDir(), "config.conf"))
	require.NoError(t, err)
	require.False(t, loaded.Config.Dictation.Enabled)
	require.Equal(t, "http://10.0.0.2:8001", loaded.Config.Endpoint.URL)
	require.Equal(t, "Control+Alt+M", loaded.Config.Dictation.Shortcut)
}

func TestLoadEnvInvalidShortcutFails(t *testing.T) {
	t.Setenv("SIGNALHUB_DICTATION_SHORTCUT", "A+B")

	_, err := Load(filepath.Join(t.TempDir(), "config.conf"))
	require.ErrorContains(t, err, "environment overrides")
}

func TestResolvePathPrefersExplicit(t *testing.T) {
	path, err := ResolvePath("/tmp/custom.conf")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.conf", path)
}

func TestResolvePathUsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	path, err := ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, "/tmp/xdg/signalhub-dictation/config.conf", path)
}
