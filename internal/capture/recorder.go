// Package capture owns the recording session: one recorder per press, a
// watchdog bound to its lifetime, and the handoff to upload and insertion.
package capture

import "context"

// Recorder is one live capture stream. Stop closes Chunks exactly once and
// is safe to call repeatedly.
type Recorder interface {
	Chunks() <-chan []byte
	Stop() error
}

// Source acquires recorders and describes the container formats it can
// produce.
type Source interface {
	Acquire(ctx context.Context) (Recorder, error)
	SupportedMimeTypes() []string
	DefaultMimeType() string
}

// SelectMimeType picks the first preferred type the source supports, falling
// back to the source default when nothing matches.
func SelectMimeType(preferences []string, source Source) string {
	supported := source.SupportedMimeTypes()
	for _, want := range preferences {
		for _, have := range supported {
			if want == have {
				return want
			}
		}
	}
	return source.DefaultMimeType()
}
