package config

import (
	"fmt"
	"strings"
	"unicode"
)

// argvLexer splits a shell-like command string without invoking a shell.
// Supported syntax: whitespace-separated words, single and double quotes,
// backslash escapes. No expansion or globbing.
type argvLexer struct {
	words   []string
	word    strings.Builder
	quote   rune
	escaped bool
}

func (l *argvLexer) consume(r rune) {
	switch {
	case l.escaped:
		l.word.WriteRune(r)
		l.escaped = false
	case r == '\\':
		l.escaped = true
	case l.quote != 0:
		if r == l.quote {
			l.quote = 0
			return
		}
		l.word.WriteRune(r)
	case r == '\'' || r == '"':
		l.quote = r
	case unicode.IsSpace(r):
		l.endWord()
	default:
		l.word.WriteRune(r)
	}
}

func (l *argvLexer) endWord() {
	if l.word.Len() == 0 {
		return
	}
	l.words = append(l.words, l.word.String())
	l.word.Reset()
}

// parseArgv tokenizes a command string into argv form. Blank strings and
// lines starting with '#' yield a nil argv.
func parseArgv(input string) ([]string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, nil
	}

	var lex argvLexer
	for _, r := range trimmed {
		lex.consume(r)
	}
	if lex.escaped {
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	}
	if lex.quote != 0 {
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}

	lex.endWord()
	return lex.words, nil
}

// mustParseArgv is for compile-time default commands only.
func mustParseArgv(input string) []string {
	argv, err := parseArgv(input)
	if err != nil {
		panic(fmt.Sprintf("default command %q: %v", input, err))
	}
	return argv
}
