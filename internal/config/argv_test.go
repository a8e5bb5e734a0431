package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgvSplitsWordsQuotesAndEscapes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{name: "empty string", input: "", want: nil},
		{name: "whitespace only", input: "  \t ", want: nil},
		{name: "commented out", input: "# wl-copy --trim-newline", want: nil},
		{name: "plain words", input: "wl-copy --trim-newline", want: []string{"wl-copy", "--trim-newline"}},
		{name: "collapses runs of spaces", input: "wtype   -", want: []string{"wtype", "-"}},
		{name: "double quoted word", input: `notify --title "dictation ready"`, want: []string{"notify", "--title", "dictation ready"}},
		{name: "single quoted word", input: `notify --title 'dictation ready'`, want: []string{"notify", "--title", "dictation ready"}},
		{name: "quote glued to word", input: `grep hello" world"`, want: []string{"grep", "hello world"}},
		{name: "escaped space", input: `typer hello\ world`, want: []string{"typer", "hello world"}},
		{name: "escaped quote", input: `typer \"quoted\"`, want: []string{"typer", `"quoted"`}},
		{name: "unterminated double quote", input: `typer "oops`, wantErr: "unterminated quote"},
		{name: "unterminated single quote", input: `typer 'oops`, wantErr: "unterminated quote"},
		{name: "trailing backslash", input: `typer oops\`, wantErr: "unterminated escape"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseArgv(tc.input)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMustParseArgvPanicsOnInvalidDefault(t *testing.T) {
	require.Panics(t, func() {
		_ = mustParseArgv(`wl-copy "unterminated`)
	})
	require.Equal(t, []string{"wl-copy", "--trim-newline"}, mustParseArgv("wl-copy --trim-newline"))
}
