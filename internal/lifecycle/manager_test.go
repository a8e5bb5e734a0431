package lifecycle

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sbpk516/signalhub-dictation/internal/event"
	"github.com/sbpk516/signalhub-dictation/internal/keyhook"
	"github.com/sbpk516/signalhub-dictation/internal/shortcut"
)

var errHookUnavailable = errors.New("hook unavailable")

type fakeHook struct {
	addErr      error
	handler     keyhook.Handler
	addCalls    atomic.Int32
	removeCalls atomic.Int32
	killCalls   atomic.Int32
}

func (f *fakeHook) AddListener(h keyhook.Handler) error {
	f.addCalls.Add(1)
	if f.addErr != nil {
		return f.addErr
	}
	f.handler = h
	return nil
}

func (f *fakeHook) RemoveListener() { f.removeCalls.Add(1) }
func (f *fakeHook) Kill()           { f.killCalls.Add(1) }

// recorderBus drains a bus subscription into an ordered slice.
type eventLog struct {
	bus    *event.Bus
	cancel func()
	ch     <-chan event.Event
}

func newEventLog() *eventLog {
	bus := event.NewBus(32)
	ch, cancel := bus.Subscribe()
	return &eventLog{bus: bus, cancel: cancel, ch: ch}
}

func (l *eventLog) drain() []event.Event {
	var out []event.Event
	for {
		select {
		case ev := <-l.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func types(events []event.Event) []event.Type {
	out := make([]event.Type, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type())
	}
	return out
}

func testChord(t *testing.T, raw string) shortcut.Chord {
	t.Helper()
	res := shortcut.Validate(raw)
	require.True(t, res.IsValid)
	return res.Chord
}

func newTestManager(t *testing.T, raw string) (*Manager, *eventLog, *fakeHook) {
	t.Helper()
	log := newEventLog()
	hook := &fakeHook{}
	provider := func() (keyhook.Hook, error) { return hook, nil }
	m := NewManager(nil, log.bus, testChord(t, raw), provider, nil)
	return m, log, hook
}

func press(m *Manager, names ...string) {
	for _, name := range names {
		m.HandleKey(keyhook.Event{Kind: keyhook.KeyDown, Name: name})
	}
}

func release(m *Manager, names ...string) {
	for _, name := range names {
		m.HandleKey(keyhook.Event{Kind: keyhook.KeyUp, Name: name})
	}
}

func TestFirstPressPromptsForPermission(t *testing.T) {
	m, log, _ := newTestManager(t, "Command+Shift+D")

	press(m, "cmd", "shift", "d")
	require.Equal(t, StateAwaitingPermission, m.State())

	events := log.drain()
	require.Equal(t, []event.Type{event.TypePressStart, event.TypePermissionRequired}, types(events))

	required := events[1].(event.PermissionRequired)
	require.Equal(t, int64(1), required.RequestID)
}

func TestGrantedPressEmitsStartRequestEnd(t *testing.T) {
	m, log, _ := newTestManager(t, "Command+Shift+D")
	m.clock = func() time.Time { return time.Unix(100, 0) }

	// First press walks the permission gate.
	press(m, "cmd", "shift", "d")
	required := log.drain()[1].(event.PermissionRequired)
	m.GrantPermission(required.RequestID)
	require.Equal(t, StateRecording, m.State())
	require.Equal(t, []event.Type{event.TypePermissionGranted, event.TypeRequestStart}, types(log.drain()))

	m.clock = func() time.Time { return time.Unix(101, 500000000) }
	release(m, "d")
	events := log.drain()
	require.Equal(t, []event.Type{event.TypePressEnd}, types(events))
	require.Equal(t, int64(1500), events[0].(event.PressEnd).DurationMS)
	require.Equal(t, StateIdle, m.State())
	release(m, "cmd", "shift")

	// Subsequent press within the same process lifetime never re-prompts.
	m.clock = func() time.Time { return time.Unix(200, 0) }
	press(m, "cmd", "shift", "d")
	m.clock = func() time.Time { return time.Unix(200, 250000000) }
	release(m, "shift")

	got := types(log.drain())
	require.Equal(t, []event.Type{event.TypePressStart, event.TypeRequestStart, event.TypePressEnd}, got)
}

func TestDenyEmitsDeniedThenCancelNeverEnd(t *testing.T) {
	m, log, _ := newTestManager(t, "Command+Shift+D")

	press(m, "cmd", "shift", "d")
	required := log.drain()[1].(event.PermissionRequired)

	m.DenyPermission(required.RequestID)
	require.Equal(t, StateIdle, m.State())
	require.Equal(t, []event.Type{event.TypePermissionDenied, event.TypePressCancel}, types(log.drain()))

	// The physical keys are still down; releasing them emits nothing more.
	release(m, "d", "shift", "cmd")
	require.Empty(t, log.drain())
}

func TestStaleGrantIsNoOp(t *testing.T) {
	m, log, _ := newTestManager(t, "Command+Shift+D")

	press(m, "cmd", "shift", "d")
	required := log.drain()[1].(event.PermissionRequired)

	// Chord breaks before consent resolves: press-cancel, pending cleared.
	release(m, "d")
	require.Equal(t, []event.Type{event.TypePressCancel}, types(log.drain()))

	m.GrantPermission(required.RequestID)
	require.Empty(t, log.drain())
	require.Equal(t, StateIdle, m.State())

	m.GrantPermission(999)
	require.Empty(t, log.drain())
}

func TestPendingPermissionIDsStrictlyIncrease(t *testing.T) {
	m, log, _ := newTestManager(t, "Command+Shift+D")

	press(m, "cmd", "shift", "d")
	first := log.drain()[1].(event.PermissionRequired)
	release(m, "d", "shift", "cmd")
	log.drain()

	press(m, "cmd", "shift", "d")
	second := log.drain()[1].(event.PermissionRequired)
	require.Greater(t, second.RequestID, first.RequestID)
}

func TestUnrelatedAndMalformedKeysIgnored(t *testing.T) {
	m, log, _ := newTestManager(t, "Command+Shift+D")

	press(m, "x", "")
	m.HandleKey(keyhook.Event{Kind: keyhook.KeyUp, Name: "enter"})
	require.Equal(t, StateIdle, m.State())
	require.Empty(t, log.drain())
}

func TestDuplicateSatisfyWhileStartInFlightIsDropped(t *testing.T) {
	m, log, _ := newTestManager(t, "Control+Option")

	press(m, "ctrl", "option")
	required := log.drain()[1].(event.PermissionRequired)
	m.GrantPermission(required.RequestID)
	log.drain()
	require.Equal(t, StateRecording, m.State())

	// A repeat down for a key already held must not spawn a second session.
	press(m, "ctrl")
	require.Empty(t, log.drain())
	require.Equal(t, StateRecording, m.State())
}

func TestCancelAbortsLiveSessionOnce(t *testing.T) {
	m, log, _ := newTestManager(t, "Command+Shift+D")

	press(m, "cmd", "shift", "d")
	log.drain()

	m.Cancel("shutdown")
	events := log.drain()
	require.Equal(t, []event.Type{event.TypePressCancel}, types(events))
	require.Equal(t, "shutdown", events[0].(event.PressCancel).Reason)

	m.Cancel("shutdown")
	require.Empty(t, log.drain())
}

func TestStartListeningFallbackOnProviderFailure(t *testing.T) {
	log := newEventLog()
	provider := func() (keyhook.Hook, error) { return nil, errHookUnavailable }
	m := NewManager(nil, log.bus, testChord(t, "Command+Shift+D"), provider, nil)

	require.NoError(t, m.StartListening())
	require.Equal(t, []event.Type{event.TypeListenerFallback}, types(log.drain()))

	// Disabled managers never retry the provider.
	require.NoError(t, m.StartListening())
	require.Empty(t, log.drain())
}

func TestStopListeningIdempotentKillsExactlyOnce(t *testing.T) {
	m, _, hook := newTestManager(t, "Command+Shift+D")

	require.NoError(t, m.StartListening())
	require.EqualValues(t, 1, hook.addCalls.Load())

	m.StopListening()
	m.StopListening()
	m.StopListening()

	require.EqualValues(t, 1, hook.removeCalls.Load())
	require.EqualValues(t, 1, hook.killCalls.Load())
}

func TestSetChordCancelsActiveSession(t *testing.T) {
	m, log, _ := newTestManager(t, "Command+Shift+D")

	press(m, "cmd", "shift", "d")
	log.drain()

	m.SetChord(testChord(t, "Control+Option"))
	require.Equal(t, []event.Type{event.TypePressCancel}, types(log.drain()))
	require.Equal(t, StateIdle, m.State())

	press(m, "ctrl", "option")
	require.Equal(t, []event.Type{event.TypePressStart, event.TypePermissionRequired}, types(log.drain()))
}
