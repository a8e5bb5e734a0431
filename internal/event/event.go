// Package event defines the tagged dictation lifecycle messages exchanged
// between the key-listener domain, the capture domain, and ipc subscribers.
package event

import (
	"encoding/json"
	"fmt"
)

// Type discriminates one wire message shape.
type Type string

const (
	TypePressStart         Type = "dictation:press-start"
	TypeRequestStart       Type = "dictation:request-start"
	TypePermissionRequired Type = "dictation:permission-required"
	TypePermissionGranted  Type = "dictation:permission-granted"
	TypePermissionDenied   Type = "dictation:permission-denied"
	TypePressEnd           Type = "dictation:press-end"
	TypePressCancel        Type = "dictation:press-cancel"
	TypeListenerFallback   Type = "dictation:listener-fallback"
)

// Event is one decoded lifecycle message.
type Event interface {
	Type() Type
}

// PressStart marks a chord satisfied; duration is always zero at press time.
type PressStart struct {
	DurationMS int64 `json:"durationMs"`
}

func (PressStart) Type() Type { return TypePressStart }

// RequestStart asks the capture domain to begin recording one session.
type RequestStart struct {
	RequestID int64 `json:"requestId"`
}

func (RequestStart) Type() Type { return TypeRequestStart }

// PermissionRequired correlates a press with an outstanding consent prompt.
type PermissionRequired struct {
	RequestID       int64 `json:"requestId"`
	AccessibilityOK bool  `json:"accessibilityOk"`
	MicOK           bool  `json:"micOk"`
}

func (PermissionRequired) Type() Type { return TypePermissionRequired }

// PermissionGranted reports consent; it carries no payload so consumers must
// tolerate it arriving after the originating press was already cancelled.
type PermissionGranted struct{}

func (PermissionGranted) Type() Type { return TypePermissionGranted }

// PermissionDenied reports refused consent for a specific pending request.
type PermissionDenied struct {
	RequestID int64  `json:"requestId"`
	Reason    string `json:"reason"`
}

func (PermissionDenied) Type() Type { return TypePermissionDenied }

// PressEnd marks a normal chord release with the measured hold duration.
type PressEnd struct {
	DurationMS int64 `json:"durationMs"`
}

func (PressEnd) Type() Type { return TypePressEnd }

// PressCancel marks an aborted session; a session never emits both
// PressEnd and PressCancel.
type PressCancel struct {
	Reason string `json:"reason"`
}

func (PressCancel) Type() Type { return TypePressCancel }

// ListenerFallback signals that the global key hook could not be attached and
// the dictation feature is visibly disabled.
type ListenerFallback struct{}

func (ListenerFallback) Type() Type { return TypeListenerFallback }

// Envelope is the JSON wire frame: one discriminator plus one payload object.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps a typed event into its wire envelope.
func Encode(ev Event) (Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", ev.Type(), err)
	}
	return Envelope{Type: ev.Type(), Payload: payload}, nil
}

// Decode unwraps an envelope into its typed event. Decoding happens exactly
// once at the process boundary; everything past this point is strongly typed.
func (e Envelope) Decode() (Event, error) {
	payload := e.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	switch e.Type {
	case TypePressStart:
		var ev PressStart
		return ev, unmarshalPayload(e.Type, payload, &ev)
	case TypeRequestStart:
		var ev RequestStart
		return ev, unmarshalPayload(e.Type, payload, &ev)
	case TypePermissionRequired:
		var ev PermissionRequired
		return ev, unmarshalPayload(e.Type, payload, &ev)
	case TypePermissionGranted:
		return PermissionGranted{}, nil
	case TypePermissionDenied:
		var ev PermissionDenied
		return ev, unmarshalPayload(e.Type, payload, &ev)
	case TypePressEnd:
		var ev PressEnd
		return ev, unmarshalPayload(e.Type, payload, &ev)
	case TypePressCancel:
		var ev PressCancel
		return ev, unmarshalPayload(e.Type, payload, &ev)
	case TypeListenerFallback:
		return ListenerFallback{}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}

func unmarshalPayload(t Type, payload []byte, target any) error {
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", t, err)
	}
	return nil
}
