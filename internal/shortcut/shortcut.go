// Package shortcut normalizes and validates user-configured dictation key chords.
package shortcut

import (
	"strings"
)

// Level grades a validation message.
type Level string

const (
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Validation is a non-fatal or fatal message attached to a validation result.
type Validation struct {
	Level   Level
	Message string
}

// Chord is the parsed form of a normalized shortcut: ordered unique modifiers
// plus at most one non-modifier key.
type Chord struct {
	Modifiers []string
	Key       string
}

// Tokens returns every logical key the chord requires held at once.
func (c Chord) Tokens() []string {
	tokens := make([]string, 0, len(c.Modifiers)+1)
	tokens = append(tokens, c.Modifiers...)
	if c.Key != "" {
		tokens = append(tokens, c.Key)
	}
	return tokens
}

// String renders the chord in its canonical "Mod+Mod+Key" form.
func (c Chord) String() string {
	return strings.Join(c.Tokens(), "+")
}

// Result is the outcome of validating one raw shortcut string.
type Result struct {
	Normalized string
	IsValid    bool
	Validation *Validation
	Chord      Chord
}

var modifierAliases = map[string]string{
	"cmd":     "Command",
	"command": "Command",
	"meta":    "Command",
	"super":   "Command",
	"win":     "Command",
	"ctrl":    "Control",
	"control": "Control",
	"lctrl":   "Control",
	"rctrl":   "Control",
	"shift":   "Shift",
	"lshift":  "Shift",
	"rshift":  "Shift",
	"alt":     "Alt",
	"lalt":    "Alt",
	"ralt":    "Alt",
	"opt":     "Option",
	"option":  "Option",
	"lcmd":    "Command",
	"rcmd":    "Command",
}

// reservedChords are OS-owned combinations that still validate but deserve a warning.
var reservedChords = map[string]string{
	"Command+Q":   "quits the frontmost application",
	"Command+W":   "closes the frontmost window",
	"Command+Tab": "switches applications",
	"Alt+F4":      "closes the active window",
	"Alt+Tab":     "switches windows",
}

// CanonicalToken maps one raw token to its canonical name and reports whether
// it is a modifier. Unknown empty tokens return ("", false).
func CanonicalToken(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if canonical, ok := modifierAliases[strings.ToLower(trimmed)]; ok {
		return canonical, true
	}
	return canonicalKeyName(trimmed), false
}

// canonicalKeyName upper-cases single characters and title-cases named keys.
func canonicalKeyName(token string) string {
	if len(token) == 1 {
		return strings.ToUpper(token)
	}
	return strings.ToUpper(token[:1]) + strings.ToLower(token[1:])
}

// Validate normalizes and validates a raw shortcut string. It is pure and
// deterministic: the same input always yields the same result and nothing is
// mutated or logged.
func Validate(raw string) Result {
	if strings.TrimSpace(raw) == "" {
		return invalid("shortcut cannot be empty")
	}

	var (
		modifiers  []string
		seen       = map[string]bool{}
		duplicates []string
		keys       []string
	)

	for _, token := range strings.Split(raw, "+") {
		canonical, isModifier := CanonicalToken(token)
		if canonical == "" {
			continue
		}
		if !isModifier {
			keys = append(keys, canonical)
			continue
		}
		if seen[canonical] {
			duplicates = append(duplicates, canonical)
			continue
		}
		seen[canonical] = true
		modifiers = append(modifiers, canonical)
	}

	switch {
	case len(keys) == 0 && len(modifiers) < 2:
		return invalid("use at least two modifier keys or add a key")
	case len(keys) > 1:
		return invalid("only one non-modifier key supported")
	case len(keys) == 1 && len(modifiers) == 0:
		return invalid("add at least one modifier")
	}

	chord := Chord{Modifiers: modifiers}
	if len(keys) == 1 {
		chord.Key = keys[0]
	}
	normalized := chord.String()

	result := Result{Normalized: normalized, IsValid: true, Chord: chord}
	if len(duplicates) > 0 {
		result.Validation = &Validation{
			Level:   LevelWarning,
			Message: "duplicate modifiers removed: " + strings.Join(duplicates, ", "),
		}
		return result
	}
	if reason, reserved := reservedChords[normalized]; reserved {
		result.Validation = &Validation{
			Level:   LevelWarning,
			Message: normalized + " is reserved by the operating system (" + reason + ")",
		}
	}
	return result
}

func invalid(message string) Result {
	return Result{IsValid: false, Validation: &Validation{Level: LevelError, Message: message}}
}
