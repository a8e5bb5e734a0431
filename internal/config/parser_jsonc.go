package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Dictation  *jsoncDictation  `json:"dictation"`
	Endpoint   *jsoncEndpoint   `json:"endpoint"`
	Audio      *jsoncAudio      `json:"audio"`
	Capture    *jsoncCapture    `json:"capture"`
	Upload     *jsoncUpload     `json:"upload"`
	Transcript *jsoncTranscript `json:"transcript"`
	Indicator  *jsoncIndicator  `json:"indicator"`

	ClipboardCmd *string     `json:"clipboard_cmd"`
	BridgeCmd    *string     `json:"bridge_cmd"`
	Debug        *jsoncDebug `json:"debug"`
}

type jsoncDictation struct {
	Enabled  *bool   `json:"enabled"`
	Shortcut *string `json:"shortcut"`
}

type jsoncEndpoint struct {
	URL            *string `json:"url"`
	TranscribePath *string `json:"transcribe_path"`
	HealthPath     *string `json:"health_path"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncCapture struct {
	WatchdogSeconds *int             `json:"watchdog_seconds"`
	MimePreference  *jsoncStringList `json:"mime_preference"`
}

type jsoncUpload struct {
	MaxAttempts *int `json:"max_attempts"`
	BackoffMS   *int `json:"backoff_ms"`
	TimeoutMS   *int `json:"timeout_ms"`
}

type jsoncTranscript struct {
	TrailingSpace       *bool `json:"trailing_space"`
	CapitalizeSentences *bool `json:"capitalize_sentences"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(&cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) error {
	if payload.Dictation != nil {
		if payload.Dictation.Enabled != nil {
			cfg.Dictation.Enabled = *payload.Dictation.Enabled
		}
		if payload.Dictation.Shortcut != nil {
			cfg.Dictation.Shortcut = strings.TrimSpace(*payload.Dictation.Shortcut)
		}
	}

	if payload.Endpoint != nil {
		if payload.Endpoint.URL != nil {
			cfg.Endpoint.URL = strings.TrimSpace(*payload.Endpoint.URL)
		}
		if payload.Endpoint.TranscribePath != nil {
			cfg.Endpoint.TranscribePath = strings.TrimSpace(*payload.Endpoint.TranscribePath)
		}
		if payload.Endpoint.HealthPath != nil {
			cfg.Endpoint.HealthPath = strings.TrimSpace(*payload.Endpoint.HealthPath)
		}
	}

	if payload.Audio != nil {
		if payload.Audio.Input != nil {
			cfg.Audio.Input = *payload.Audio.Input
		}
		if payload.Audio.Fallback != nil {
			cfg.Audio.Fallback = *payload.Audio.Fallback
		}
	}

	if payload.Capture != nil {
		if payload.Capture.WatchdogSeconds != nil {
			cfg.Capture.WatchdogSeconds = *payload.Capture.WatchdogSeconds
		}
		if payload.Capture.MimePreference != nil {
			cfg.Capture.MimePreference = append([]string(nil), *payload.Capture.MimePreference...)
		}
	}

	if payload.Upload != nil {
		if payload.Upload.MaxAttempts != nil {
			cfg.Upload.MaxAttempts = *payload.Upload.MaxAttempts
		}
		if payload.Upload.BackoffMS != nil {
			cfg.Upload.BackoffMS = *payload.Upload.BackoffMS
		}
		if payload.Upload.TimeoutMS != nil {
			cfg.Upload.TimeoutMS = *payload.Upload.TimeoutMS
		}
	}

	if payload.Transcript != nil {
		if payload.Transcript.TrailingSpace != nil {
			cfg.Transcript.TrailingSpace = *payload.Transcript.TrailingSpace
		}
		if payload.Transcript.CapitalizeSentences != nil {
			cfg.Transcript.CapitalizeSentences = *payload.Transcript.CapitalizeSentences
		}
	}

	if payload.Indicator != nil {
		if payload.Indicator.Enable != nil {
			cfg.Indicator.Enable = *payload.Indicator.Enable
		}
		if payload.Indicator.Backend != nil {
			cfg.Indicator.Backend = strings.TrimSpace(*payload.Indicator.Backend)
		}
		if payload.Indicator.DesktopAppName != nil {
			cfg.Indicator.DesktopAppName = strings.TrimSpace(*payload.Indicator.DesktopAppName)
		}
		if payload.Indicator.SoundEnable != nil {
			cfg.Indicator.SoundEnable = *payload.Indicator.SoundEnable
		}
		if payload.Indicator.ErrorTimeoutMS != nil {
			cfg.Indicator.ErrorTimeoutMS = *payload.Indicator.ErrorTimeoutMS
		}
	}

	if payload.ClipboardCmd != nil {
		raw := *payload.ClipboardCmd
		argv, err := parseArgv(raw)
		if err != nil {
			return fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = CommandConfig{Raw: raw, Argv: argv}
	}

	if payload.BridgeCmd != nil {
		raw := *payload.BridgeCmd
		argv, err := parseArgv(raw)
		if err != nil {
			return fmt.Errorf("invalid bridge_cmd: %w", err)
		}
		cfg.Bridge = CommandConfig{Raw: raw, Argv: argv}
	}

	if payload.Debug != nil && payload.Debug.AudioDump != nil {
		cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
	}

	return nil
}

type jsoncScanState int

const (
	scanValue jsoncScanState = iota
	scanString
	scanStringEscape
	scanLineComment
	scanBlockComment
)

// normalizeJSONC rewrites JSONC into plain JSON: comments become whitespace
// (offsets and line numbers stay stable for error reporting) and trailing
// commas before a closing brace or bracket are dropped.
func normalizeJSONC(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	state := scanValue
	pendingComma := false

	flushComma := func() {
		if pendingComma {
			out.WriteByte(',')
			pendingComma = false
		}
	}

	for i := 0; i < len(content); i++ {
		ch := content[i]

		switch state {
		case scanLineComment:
			if ch == '\n' || ch == '\r' {
				state = scanValue
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}

		case scanBlockComment:
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				state = scanValue
				out.WriteString("  ")
				i++
			} else if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}

		case scanString:
			out.WriteByte(ch)
			if ch == '\\' {
				state = scanStringEscape
			} else if ch == '"' {
				state = scanValue
			}

		case scanStringEscape:
			out.WriteByte(ch)
			state = scanString

		default:
			if ch == '/' && i+1 < len(content) && (content[i+1] == '/' || content[i+1] == '*') {
				if content[i+1] == '/' {
					state = scanLineComment
				} else {
					state = scanBlockComment
				}
				out.WriteString("  ")
				i++
				continue
			}

			switch {
			case ch == ',':
				// Held back until the next significant byte proves it is
				// not a trailing comma.
				flushComma()
				pendingComma = true
			case isJSONWhitespace(ch):
				out.WriteByte(ch)
			case ch == '}' || ch == ']':
				pendingComma = false
				out.WriteByte(ch)
			default:
				flushComma()
				if ch == '"' {
					state = scanString
				}
				out.WriteByte(ch)
			}
		}
	}

	if state == scanBlockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}
	flushComma()

	return out.String(), nil
}

func isJSONWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\r' || ch == '\t'
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	offset := int64(-1)

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	if offset < 0 {
		return err
	}

	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// offsetToLineCol converts a 1-based decoder byte offset to line/column.
func offsetToLineCol(content string, offset int64) (int, int) {
	limit := int(offset) - 1
	if limit < 0 {
		limit = 0
	}
	if limit > len(content) {
		limit = len(content)
	}

	prefix := content[:limit]
	line := 1 + strings.Count(prefix, "\n")
	col := limit - strings.LastIndexByte(prefix, '\n')
	return line, col
}
