// Package transcript normalizes transcribed text before insertion.
package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

// Options controls transcript normalization behavior.
type Options struct {
	TrailingSpace       bool
	CapitalizeSentences bool
}

var pronounIPattern = regexp.MustCompile(`(^|[\s(\["'])i([\s.,!?;:)\]"']|'(?:m|ll|ve|d)\b|$)`)

// Normalize collapses whitespace and applies the configured casing rules.
// Empty or whitespace-only input stays empty regardless of options.
func Normalize(raw string, opts Options) string {
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return ""
	}

	if opts.CapitalizeSentences {
		text = capitalizeSentences(text)
	}

	if opts.TrailingSpace {
		return text + " "
	}
	return text
}

// capitalizeSentences upcases the first letter of the text and of every run
// following terminal punctuation, and fixes the standalone pronoun "i".
func capitalizeSentences(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	startOfSentence := true
	for _, r := range text {
		if startOfSentence && unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
			startOfSentence = false
			continue
		}
		switch r {
		case '.', '!', '?':
			startOfSentence = true
		default:
			if !unicode.IsSpace(r) && r != '"' && r != '\'' && r != ')' {
				startOfSentence = false
			}
		}
		b.WriteRune(r)
	}

	return pronounIPattern.ReplaceAllStringFunc(b.String(), func(match string) string {
		idx := strings.IndexByte(match, 'i')
		if idx < 0 {
			return match
		}
		return match[:idx] + "I" + match[idx+1:]
	})
}
