package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCueForTransition(t *testing.T) {
	recording := State{Visible: true, Mode: ModeRecording}
	processing := State{Visible: true, Mode: ModeProcessing}
	errored := State{Visible: true, Mode: ModeError}
	hidden := State{}

	require.Equal(t, cueStart, cueForTransition(hidden, recording))
	require.Equal(t, cueStop, cueForTransition(recording, processing))
	require.Equal(t, cueComplete, cueForTransition(processing, hidden))
	require.Equal(t, cueCancel, cueForTransition(recording, hidden))
	require.Equal(t, cueCancel, cueForTransition(recording, errored))
	require.Equal(t, cueKind(0), cueForTransition(hidden, hidden))
	require.Equal(t, cueKind(0), cueForTransition(recording, recording))
	require.Equal(t, cueKind(0), cueForTransition(errored, errored))
}

func TestSynthesizeCueShapes(t *testing.T) {
	tones := cueTones[cueStart]
	pcm := synthesizeCue(tones)

	wantSamples := samplesForDuration(tones[0].duration) +
		samplesForDuration(22*time.Millisecond) +
		samplesForDuration(tones[1].duration)
	require.Len(t, pcm, wantSamples)

	// Envelope keeps the first and last samples silent.
	require.Zero(t, pcm[0])
	require.Zero(t, pcm[len(pcm)-1])
}

func TestSynthesizeToneBounded(t *testing.T) {
	volume := 0.2
	pcm := synthesizeTone(toneSpec{frequencyHz: 440, duration: 50 * time.Millisecond, volume: volume})
	require.NotEmpty(t, pcm)
	peak := int(volume * 32767)
	for _, sample := range pcm {
		require.LessOrEqual(t, int(sample), peak+1)
		require.GreaterOrEqual(t, int(sample), -peak-1)
	}
}

func TestMessagesForLocaleDefaultsToEnglish(t *testing.T) {
	require.Equal(t, localeEnglish, resolveLocale("en_US.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale("de_DE.UTF-8"))
	require.Equal(t, "Recording…", messagesForLocale(localeEnglish).recording)
}
