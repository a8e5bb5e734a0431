package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	got := Normalize("  hello   world \n there ", Options{})
	require.Equal(t, "hello world there", got)
}

func TestNormalizeEmptyInput(t *testing.T) {
	require.Equal(t, "", Normalize("", Options{TrailingSpace: true}))
	require.Equal(t, "", Normalize("   \t  ", Options{TrailingSpace: true}))
}

func TestNormalizeTrailingSpace(t *testing.T) {
	got := Normalize("hello world", Options{TrailingSpace: true})
	require.Equal(t, "hello world ", got)
}

func TestNormalizeCapitalizesSentences(t *testing.T) {
	got := Normalize("first point. second point! third? done", Options{CapitalizeSentences: true})
	require.Equal(t, "First point. Second point! Third? Done", got)
}

func TestNormalizeFixesPronounI(t *testing.T) {
	got := Normalize("yesterday i said i'll go, and i did.", Options{CapitalizeSentences: true})
	require.Equal(t, "Yesterday I said I'll go, and I did.", got)
}

func TestNormalizePreservesInnerCasing(t *testing.T) {
	got := Normalize("open the GitHub PR. ping iOS team", Options{CapitalizeSentences: true})
	require.Equal(t, "Open the GitHub PR. Ping iOS team", got)
}
