package config

const (
	defaultClipboardCmd = "wl-copy --trim-newline"
	defaultBridgeCmd    = "wtype -"
)

// Default returns the canonical runtime configuration used when no file is
// present.
func Default() Config {
	return Config{
		Dictation: DictationConfig{
			Enabled:  true,
			Shortcut: "Control+Shift+Space",
		},
		Endpoint: EndpointConfig{
			URL:            "http://127.0.0.1:8001",
			TranscribePath: "/dictation/transcribe",
			HealthPath:     "/health",
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Capture: CaptureConfig{
			WatchdogSeconds: 120,
			MimePreference:  []string{"audio/wav"},
		},
		Upload: UploadConfig{
			MaxAttempts: 3,
			BackoffMS:   500,
			TimeoutMS:   60000,
		},
		Transcript: TranscriptConfig{
			TrailingSpace:       true,
			CapitalizeSentences: true,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "signalhub-dictation",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Clipboard: CommandConfig{Raw: defaultClipboardCmd, Argv: mustParseArgv(defaultClipboardCmd)},
		Bridge:    CommandConfig{Raw: defaultBridgeCmd, Argv: mustParseArgv(defaultBridgeCmd)},
		Debug:     DebugConfig{},
	}
}
