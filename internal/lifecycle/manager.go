package lifecycle

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sbpk516/signalhub-dictation/internal/event"
	"github.com/sbpk516/signalhub-dictation/internal/keyhook"
	"github.com/sbpk516/signalhub-dictation/internal/shortcut"
)

// PendingPermission correlates one press with an outstanding consent prompt.
// At most one exists at a time; ids increase strictly for the process lifetime.
type PendingPermission struct {
	ID              int64
	AccessibilityOK bool
	MicOK           bool
}

type permissionState int

const (
	permissionUnknown permissionState = iota
	permissionGranted
	permissionDenied
)

// PermissionProbe reports the currently known OS permission flags; used to
// fill the permission-required payload. Nil means both unknown.
type PermissionProbe func() (accessibilityOK, micOK bool)

// Manager is the dictation lifecycle state machine. It consumes translated
// key events, tracks chord down/up, gates recording on permission consent,
// and publishes lifecycle events on the bus. All methods are safe for
// concurrent use; the hook callback and ipc commands arrive on different
// goroutines.
type Manager struct {
	logger *slog.Logger
	bus    *event.Bus
	probe  PermissionProbe

	provider keyhook.Provider

	mu    sync.Mutex
	chord shortcut.Chord
	state State
	held  map[string]bool
	clock func() time.Time

	pressedAt     time.Time
	sessionLive   bool // press-start emitted, end/cancel not yet
	startInFlight bool // a recording start was dispatched for this session

	permission    permissionState
	pending       *PendingPermission
	nextPendingID int64
	nextRequestID int64

	hook     keyhook.Hook
	attached bool
	killed   bool
	disabled bool
}

// NewManager wires a lifecycle manager for one configured chord.
func NewManager(logger *slog.Logger, bus *event.Bus, chord shortcut.Chord, provider keyhook.Provider, probe PermissionProbe) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		logger:   logger,
		bus:      bus,
		probe:    probe,
		provider: provider,
		chord:    chord,
		state:    StateIdle,
		held:     make(map[string]bool),
		clock:    time.Now,
	}
}

// State returns the current state snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetChord swaps the configured chord, cancelling any in-progress session so
// stale held-key bookkeeping cannot satisfy the new chord.
func (m *Manager) SetChord(chord shortcut.Chord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked("shortcut changed")
	m.chord = chord
	m.held = make(map[string]bool)
}

// StartListening lazily constructs and attaches the key hook. Attach failure
// is fatal-but-recoverable: it publishes listener-fallback and returns nil so
// the host keeps running with dictation visibly disabled.
func (m *Manager) StartListening() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.attached || m.disabled {
		return nil
	}

	hook, err := m.provider()
	if err == nil && hook != nil {
		err = hook.AddListener(m.HandleKey)
	}
	if err != nil || hook == nil {
		m.disabled = true
		if err != nil {
			m.logger.Error("key hook attach failed; dictation disabled", "error", err.Error())
		}
		m.publishLocked(event.ListenerFallback{})
		return nil
	}

	m.hook = hook
	m.attached = true
	return nil
}

// StopListening cancels any live session, detaches the handler, and kills the
// underlying hook exactly once. Idempotent: extra calls are no-ops.
func (m *Manager) StopListening() {
	m.mu.Lock()
	hook := m.hook
	attached := m.attached
	killed := m.killed
	m.attached = false
	if hook != nil {
		m.killed = true
	}
	m.cancelLocked("listener stopped")
	m.mu.Unlock()

	if hook == nil {
		return
	}
	if attached {
		hook.RemoveListener()
	}
	if !killed {
		hook.Kill()
	}
}

// HandleKey consumes one translated key event. Events that name keys outside
// the configured chord are ignored, as are events with no recognized name.
func (m *Manager) HandleKey(ev keyhook.Event) {
	canonical, _ := shortcut.CanonicalToken(ev.Name)
	if canonical == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.chordContains(canonical) {
		return
	}

	switch ev.Kind {
	case keyhook.KeyDown:
		m.keyDownLocked(canonical)
	case keyhook.KeyUp:
		m.keyUpLocked(canonical)
	}
}

// GrantPermission resolves a pending request. Mismatched or stale ids are
// ignored so a grant racing a cancelled press is harmless.
func (m *Manager) GrantPermission(requestID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil || m.pending.ID != requestID {
		m.logger.Debug("stale permission grant ignored", "request_id", requestID)
		return
	}
	m.pending = nil
	m.permission = permissionGranted
	m.publishLocked(event.PermissionGranted{})

	if m.state != StateAwaitingPermission {
		return
	}
	m.transitionLocked(SignalGrant)
	m.dispatchStartLocked()
}

// DenyPermission resolves a pending request negatively: the session is
// cancelled and never reaches recording.
func (m *Manager) DenyPermission(requestID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil || m.pending.ID != requestID {
		m.logger.Debug("stale permission denial ignored", "request_id", requestID)
		return
	}
	m.pending = nil
	m.permission = permissionDenied
	m.publishLocked(event.PermissionDenied{RequestID: requestID, Reason: "microphone or accessibility access denied"})
	m.endSessionLocked(event.PressCancel{Reason: "permission denied"})
	m.transitionLocked(SignalCancel)
}

// Cancel aborts any in-progress session.
func (m *Manager) Cancel(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked(reason)
}

func (m *Manager) keyDownLocked(name string) {
	alreadyDown := m.held[name]
	m.held[name] = true

	if m.state == StateIdle {
		m.transitionLocked(SignalArm)
	}
	if alreadyDown || m.state != StateArmed || !m.chordSatisfiedLocked() {
		return
	}

	// Chord satisfied for the first time since last idle.
	if m.startInFlight {
		m.logger.Debug("press-start dropped; recording start already in flight")
		return
	}

	m.pressedAt = m.clock()
	m.sessionLive = true
	m.publishLocked(event.PressStart{DurationMS: 0})

	if m.permission == permissionGranted {
		m.transitionLocked(SignalHold)
		m.dispatchStartLocked()
		return
	}

	m.nextPendingID++
	pending := &PendingPermission{ID: m.nextPendingID}
	if m.probe != nil {
		pending.AccessibilityOK, pending.MicOK = m.probe()
	}
	m.pending = pending
	m.transitionLocked(SignalAwait)
	m.publishLocked(event.PermissionRequired{
		RequestID:       pending.ID,
		AccessibilityOK: pending.AccessibilityOK,
		MicOK:           pending.MicOK,
	})
}

func (m *Manager) keyUpLocked(name string) {
	delete(m.held, name)

	switch m.state {
	case StateRecording:
		if m.chordSatisfiedLocked() {
			return
		}
		duration := m.clock().Sub(m.pressedAt).Milliseconds()
		m.endSessionLocked(event.PressEnd{DurationMS: duration})
		m.transitionLocked(SignalRelease)
	case StateAwaitingPermission:
		if m.chordSatisfiedLocked() {
			return
		}
		m.pending = nil
		m.endSessionLocked(event.PressCancel{Reason: "chord released before permission resolved"})
		m.transitionLocked(SignalCancel)
	case StateArmed:
		if len(m.held) == 0 {
			m.transitionLocked(SignalDisarm)
		}
	}
}

// cancelLocked aborts the session when one is live; otherwise it only resets
// armed bookkeeping.
func (m *Manager) cancelLocked(reason string) {
	if m.state == StateIdle {
		return
	}
	m.pending = nil
	m.endSessionLocked(event.PressCancel{Reason: reason})
	m.transitionLocked(SignalCancel)
}

// endSessionLocked emits the session's terminal event at most once and clears
// per-session flags. A session emits press-end or press-cancel, never both.
func (m *Manager) endSessionLocked(terminal event.Event) {
	if m.sessionLive {
		m.publishLocked(terminal)
	}
	m.sessionLive = false
	m.startInFlight = false
}

// dispatchStartLocked hands the session to the capture domain.
func (m *Manager) dispatchStartLocked() {
	m.startInFlight = true
	m.nextRequestID++
	m.publishLocked(event.RequestStart{RequestID: m.nextRequestID})
}

func (m *Manager) chordContains(name string) bool {
	for _, mod := range m.chord.Modifiers {
		if mod == name {
			return true
		}
	}
	return m.chord.Key != "" && m.chord.Key == name
}

func (m *Manager) chordSatisfiedLocked() bool {
	for _, mod := range m.chord.Modifiers {
		if !m.held[mod] {
			return false
		}
	}
	if m.chord.Key != "" && !m.held[m.chord.Key] {
		return false
	}
	return true
}

func (m *Manager) transitionLocked(sig Signal) {
	next, err := Transition(m.state, sig)
	if err != nil {
		m.logger.Debug("lifecycle transition rejected", "state", string(m.state), "signal", string(sig))
		return
	}
	m.state = next
}

func (m *Manager) publishLocked(ev event.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}
