// Package indicator renders recording status as desktop notifications and
// audio cues. It is pure presentation: callers describe the state they want
// shown and the overlay reconciles backends to match.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sbpk516/signalhub-dictation/internal/config"
	"github.com/sbpk516/signalhub-dictation/internal/hypr"
)

// Mode is the visual state of the indicator.
type Mode string

const (
	ModeRecording  Mode = "recording"
	ModeProcessing Mode = "processing"
	ModeError      Mode = "error"
)

// Position is a screen-coordinate placement preference. Notification
// backends cannot honor it and ignore it.
type Position struct {
	X int
	Y int
}

// State is the full indicator state for one Update call.
type State struct {
	Visible  bool
	Mode     Mode
	Position Position
	Text     string
}

// Updater is the capture-facing indicator contract.
type Updater interface {
	Update(ctx context.Context, state State)
}

// Overlay drives notifications through Hyprland or desktop DBus based on the
// configured backend, and plays audio cues on state transitions.
type Overlay struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	mu                    sync.Mutex
	last                  State
	focusedMonitor        string
	desktopNotificationID uint32

	soundMu sync.Mutex
}

// NewOverlay creates an indicator overlay from config.
func NewOverlay(cfg config.IndicatorConfig, logger *slog.Logger) *Overlay {
	return &Overlay{
		cfg:      cfg,
		logger:   logger,
		messages: messagesFromEnv(),
	}
}

// Update reconciles the rendered indicator with state. Failures are logged
// at debug level and never surfaced to the caller.
func (o *Overlay) Update(ctx context.Context, state State) {
	o.mu.Lock()
	previous := o.last
	o.last = state
	o.mu.Unlock()

	o.playCue(cueForTransition(previous, state))

	if !o.cfg.Enable {
		return
	}

	if !state.Visible {
		o.mu.Lock()
		o.focusedMonitor = ""
		o.mu.Unlock()
		o.run(ctx, o.dismiss)
		return
	}

	text := state.Text
	icon, timeoutMS, color := 1, 300000, "rgb(89b4fa)"
	switch state.Mode {
	case ModeRecording:
		if text == "" {
			text = o.messages.recording
		}
		o.ensureFocusedMonitor(ctx)
	case ModeProcessing:
		if text == "" {
			text = o.messages.processing
		}
		color = "rgb(cba6f7)"
	case ModeError:
		if text == "" {
			text = o.messages.errorText
		}
		icon = 3
		color = "rgb(f38ba8)"
		timeoutMS = o.cfg.ErrorTimeoutMS
		if timeoutMS <= 0 {
			timeoutMS = 1200
		}
	}

	o.run(ctx, func(ctx context.Context) error {
		return o.notify(ctx, icon, timeoutMS, color, text)
	})
}

// FocusedMonitor returns the monitor captured when the indicator became
// visible for the current session.
func (o *Overlay) FocusedMonitor() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.focusedMonitor
}

// cueForTransition maps indicator state edges to audio cues.
func cueForTransition(previous, next State) cueKind {
	switch {
	case !previous.Visible && next.Visible && next.Mode == ModeRecording:
		return cueStart
	case previous.Visible && previous.Mode == ModeRecording && next.Visible && next.Mode == ModeProcessing:
		return cueStop
	case previous.Visible && previous.Mode == ModeProcessing && !next.Visible:
		return cueComplete
	case previous.Visible && previous.Mode == ModeRecording && !next.Visible:
		return cueCancel
	case previous.Visible && previous.Mode != ModeError && next.Visible && next.Mode == ModeError:
		return cueCancel
	default:
		return 0
	}
}

// ensureFocusedMonitor resolves and caches the focused monitor once per
// visible session.
func (o *Overlay) ensureFocusedMonitor(ctx context.Context) {
	o.mu.Lock()
	alreadySet := o.focusedMonitor != ""
	o.mu.Unlock()
	if alreadySet {
		return
	}

	monitor, err := hypr.QueryFocusedMonitor(ctx)
	if err != nil {
		o.log("indicator focused monitor query failed", err)
		return
	}

	o.mu.Lock()
	o.focusedMonitor = monitor
	o.mu.Unlock()
}

// notify dispatches indicator output through the configured backend.
func (o *Overlay) notify(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if strings.EqualFold(strings.TrimSpace(o.cfg.Backend), "desktop") {
		return o.notifyDesktop(ctx, timeoutMS, text)
	}
	return hypr.Notify(ctx, icon, timeoutMS, color, text)
}

// dismiss removes indicator output from the configured backend.
func (o *Overlay) dismiss(ctx context.Context) error {
	if strings.EqualFold(strings.TrimSpace(o.cfg.Backend), "desktop") {
		return o.dismissDesktop(ctx)
	}
	return hypr.DismissNotify(ctx)
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (o *Overlay) notifyDesktop(ctx context.Context, timeoutMS int, text string) error {
	o.mu.Lock()
	replaceID := o.desktopNotificationID
	o.mu.Unlock()

	appName := strings.TrimSpace(o.cfg.DesktopAppName)
	if appName == "" {
		appName = "signalhub-dictation"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.desktopNotificationID = id
	o.mu.Unlock()
	return nil
}

// dismissDesktop closes the current desktop notification ID when present.
func (o *Overlay) dismissDesktop(ctx context.Context) error {
	o.mu.Lock()
	id := o.desktopNotificationID
	o.desktopNotificationID = 0
	o.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (o *Overlay) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		o.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (o *Overlay) playCue(kind cueKind) {
	if kind == 0 || !o.cfg.SoundEnable {
		return
	}
	go func() {
		o.soundMu.Lock()
		defer o.soundMu.Unlock()
		if err := emitCue(kind); err != nil {
			o.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (o *Overlay) log(message string, err error) {
	if o.logger == nil || err == nil {
		return
	}
	o.logger.Debug(message, "error", err.Error())
}
