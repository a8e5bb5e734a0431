// Package snippet assembles buffered audio chunks into one bounded,
// base64-encoded payload ready for the transcription upload.
package snippet

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxSnippetBytes bounds one dictation snippet before encoding.
const MaxSnippetBytes = 5 << 20 // 5 MiB

// encodeChunkSize is a multiple of 3 so sub-chunk boundaries never split a
// base64 quantum.
const encodeChunkSize = 48 * 1024

var (
	ErrNoChunks = errors.New("no audio chunks")
	ErrEmpty    = errors.New("snippet audio is empty")
)

// Payload is one immutable, self-describing audio snippet.
type Payload struct {
	Base64Audio string `json:"base64Audio"`
	MimeType    string `json:"mimeType"`
	DurationMS  int64  `json:"durationMs"`
	SizeBytes   int    `json:"sizeBytes"`
}

// Build concatenates ordered chunks, validates the size bound, and encodes
// the blob to base64 in fixed-size sub-chunks. Oversized snippets fail, they
// are never truncated.
func Build(chunks [][]byte, mimeType string, duration time.Duration) (Payload, error) {
	if len(chunks) == 0 {
		return Payload{}, ErrNoChunks
	}

	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total == 0 {
		return Payload{}, ErrEmpty
	}
	if total > MaxSnippetBytes {
		return Payload{}, fmt.Errorf("snippet of %d bytes exceeds maximum size of %d bytes", total, MaxSnippetBytes)
	}

	blob := make([]byte, 0, total)
	for _, chunk := range chunks {
		blob = append(blob, chunk...)
	}

	var encoded strings.Builder
	encoded.Grow(base64.StdEncoding.EncodedLen(total))
	encoder := base64.NewEncoder(base64.StdEncoding, &encoded)
	for offset := 0; offset < len(blob); offset += encodeChunkSize {
		end := offset + encodeChunkSize
		if end > len(blob) {
			end = len(blob)
		}
		if _, err := encoder.Write(blob[offset:end]); err != nil {
			return Payload{}, fmt.Errorf("encode snippet audio: %w", err)
		}
	}
	if err := encoder.Close(); err != nil {
		return Payload{}, fmt.Errorf("encode snippet audio: %w", err)
	}

	return Payload{
		Base64Audio: encoded.String(),
		MimeType:    mimeType,
		DurationMS:  duration.Milliseconds(),
		SizeBytes:   total,
	}, nil
}
