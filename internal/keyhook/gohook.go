package keyhook

import (
	"errors"
	"sync"
	"unicode"

	hook "github.com/robotn/gohook"
	"github.com/vcaesar/keycode"
)

// keycodeNames inverts the keycode table once so translation is a map lookup.
// The table is keyed by the portable keycode gohook reports in Event.Keycode;
// Event.Rawcode is the platform scancode and matches nothing here.
var keycodeNames = buildKeycodeNames()

func buildKeycodeNames() map[uint16]string {
	names := make(map[uint16]string, len(keycode.Keycode))
	for name, code := range keycode.Keycode {
		current, taken := names[code]
		if !taken || preferName(name, current) {
			names[code] = name
		}
	}
	return names
}

// preferName resolves alias collisions in the keycode table independent of
// map iteration order: the unshifted character beats its shifted variant,
// then the shorter alias wins, then the lexicographically smaller one.
func preferName(candidate, current string) bool {
	if _, shifted := keycode.Special[candidate]; shifted {
		return false
	}
	if _, shifted := keycode.Special[current]; shifted {
		return true
	}
	if len(candidate) != len(current) {
		return len(candidate) < len(current)
	}
	return candidate < current
}

// SystemHook adapts the robotn/gohook process-wide event stream to the Hook
// contract. One instance owns the OS hook for its whole lifetime.
type SystemHook struct {
	mu      sync.Mutex
	handler Handler
	started bool
	killed  bool
}

// NewSystemHook is the runtime Provider.
func NewSystemHook() (Hook, error) {
	return &SystemHook{}, nil
}

// AddListener attaches the handler and starts the event pump on first use.
func (s *SystemHook) AddListener(h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.killed {
		return errors.New("key hook has been killed")
	}
	s.handler = h
	if s.started {
		return nil
	}

	events := hook.Start()
	if events == nil {
		return errors.New("platform key hook failed to start")
	}
	s.started = true
	go s.pump(events)
	return nil
}

// RemoveListener detaches the handler; the OS hook keeps running until Kill.
func (s *SystemHook) RemoveListener() {
	s.mu.Lock()
	s.handler = nil
	s.mu.Unlock()
}

// Kill stops the underlying OS hook. Safe to call once only per process; the
// lifecycle manager guarantees exactly-once invocation.
func (s *SystemHook) Kill() {
	s.mu.Lock()
	started := s.started
	killed := s.killed
	s.killed = true
	s.started = false
	s.mu.Unlock()

	if started && !killed {
		hook.End()
	}
}

// pump drains raw hook events until the hook channel closes.
func (s *SystemHook) pump(events chan hook.Event) {
	for raw := range events {
		translated, ok := Translate(raw)
		if !ok {
			continue
		}
		s.mu.Lock()
		handler := s.handler
		s.mu.Unlock()
		if handler != nil {
			handler(translated)
		}
	}
}

// Translate maps one raw gohook event to the adapter contract. Non-keyboard
// and unrecognizable events report ok=false and are dropped by the caller.
func Translate(raw hook.Event) (Event, bool) {
	var kind Kind
	switch raw.Kind {
	case hook.KeyDown, hook.KeyHold:
		kind = KeyDown
	case hook.KeyUp:
		kind = KeyUp
	default:
		return Event{}, false
	}

	name := keycodeNames[raw.Keycode]
	if name == "" && raw.Keychar != 0 && raw.Keychar != 65535 && unicode.IsPrint(raw.Keychar) {
		name = string(unicode.ToLower(raw.Keychar))
	}
	if name == "" {
		return Event{}, false
	}

	return Event{Kind: kind, Code: raw.Keycode, Name: name}, true
}
