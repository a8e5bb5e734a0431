// Package config resolves, parses, validates, and defaults the dictation
// runtime configuration.
package config

// Config is the fully materialized runtime configuration.
type Config struct {
	Dictation  DictationConfig
	Endpoint   EndpointConfig
	Audio      AudioConfig
	Capture    CaptureConfig
	Upload     UploadConfig
	Transcript TranscriptConfig
	Indicator  IndicatorConfig
	Clipboard  CommandConfig
	Bridge     CommandConfig
	Debug      DebugConfig
}

// DictationConfig is the user-facing settings surface: the feature toggle
// and the push-to-talk chord.
type DictationConfig struct {
	Enabled  bool
	Shortcut string
}

// EndpointConfig locates the transcription server.
type EndpointConfig struct {
	URL            string
	TranscribePath string
	HealthPath     string
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// CaptureConfig bounds a single recording session.
type CaptureConfig struct {
	WatchdogSeconds int
	MimePreference  []string
}

// UploadConfig tunes the transcription retry loop.
type UploadConfig struct {
	MaxAttempts int
	BackoffMS   int
	TimeoutMS   int
}

// TranscriptConfig controls post-transcription text normalization.
type TranscriptConfig struct {
	TrailingSpace       bool
	CapitalizeSentences bool
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	ErrorTimeoutMS int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
