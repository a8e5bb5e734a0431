package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sbpk516/signalhub-dictation/internal/event"
	"github.com/sbpk516/signalhub-dictation/internal/indicator"
	"github.com/sbpk516/signalhub-dictation/internal/insert"
	"github.com/sbpk516/signalhub-dictation/internal/snippet"
	"github.com/sbpk516/signalhub-dictation/internal/transcript"
	"github.com/sbpk516/signalhub-dictation/internal/upload"
)

const (
	defaultWatchdogTimeout = 120 * time.Second
	defaultFatalThreshold  = 3
)

// Uploader sends snippet payloads for transcription.
type Uploader interface {
	Transcribe(ctx context.Context, payload snippet.Payload, opts upload.Options) upload.Result
}

// Inserter delivers transcript text to the focus point.
type Inserter interface {
	Insert(ctx context.Context, text string) insert.Result
}

// Config tunes the controller.
type Config struct {
	// WatchdogTimeout bounds a single recording; zero means 120s.
	WatchdogTimeout time.Duration
	// MimePreference is matched against source-supported types in order.
	MimePreference []string
	// FatalThreshold is the consecutive acquisition-failure count that
	// disables the feature; zero means 3.
	FatalThreshold int
	// Transcript controls post-transcription text normalization.
	Transcript transcript.Options
}

// Controller owns at most one recorder at a time. It consumes press session
// events, buffers PCM while the key is held, and on release hands the audio
// to upload and insertion.
type Controller struct {
	logger    *slog.Logger
	source    Source
	uploader  Uploader
	inserter  Inserter
	indicator indicator.Updater
	cfg       Config

	// onDisable fires once when repeated acquisition failures disable the
	// feature. onWatchdog fires when a recording exceeds the watchdog
	// timeout, so the key listener can abandon the session.
	onDisable  func()
	onWatchdog func(reason string)

	mu          sync.Mutex
	recorder    Recorder
	mimeType    string
	collected   [][]byte
	collectDone chan struct{}
	watchdog    *time.Timer
	fatalErrors int
	disabled    bool

	uploadMu     sync.Mutex
	uploadCancel context.CancelFunc
	uploadDone   chan struct{}
}

// NewController wires the capture pipeline. indicator may be nil.
func NewController(logger *slog.Logger, source Source, uploader Uploader, inserter Inserter, ind indicator.Updater, cfg Config) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.WatchdogTimeout <= 0 {
		cfg.WatchdogTimeout = defaultWatchdogTimeout
	}
	if cfg.FatalThreshold <= 0 {
		cfg.FatalThreshold = defaultFatalThreshold
	}
	return &Controller{
		logger:    logger,
		source:    source,
		uploader:  uploader,
		inserter:  inserter,
		indicator: ind,
		cfg:       cfg,
	}
}

// OnDisable registers the feature-disable callback. Call before Run.
func (c *Controller) OnDisable(fn func()) { c.onDisable = fn }

// OnWatchdog registers the watchdog-fired callback. Call before Run.
func (c *Controller) OnWatchdog(fn func(reason string)) { c.onWatchdog = fn }

// Run consumes events until the channel closes or ctx is cancelled.
func (c *Controller) Run(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			c.Shutdown()
			return
		case ev, ok := <-events:
			if !ok {
				c.Shutdown()
				return
			}
			c.HandleEvent(ctx, ev)
		}
	}
}

// HandleEvent reacts to one press session event.
func (c *Controller) HandleEvent(ctx context.Context, ev event.Event) {
	switch ev := ev.(type) {
	case event.RequestStart:
		c.startSession(ctx, ev.RequestID)
	case event.PressEnd:
		c.finishSession(ctx, time.Duration(ev.DurationMS)*time.Millisecond)
	case event.PressCancel:
		c.cancelSession(ctx, ev.Reason)
	case event.ListenerFallback:
		c.logger.Warn("keyboard listener unavailable; dictation inactive")
		c.showError(ctx, "Keyboard listener unavailable")
	}
}

// Shutdown stops any live recorder and aborts an in-flight upload.
func (c *Controller) Shutdown() {
	c.cancelSession(context.Background(), "shutting down")
}

// Disabled reports whether repeated capture failures disabled the feature.
func (c *Controller) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// startSession acquires a recorder and begins buffering. A second start
// while a recorder is live is logged and ignored.
func (c *Controller) startSession(ctx context.Context, requestID int64) {
	c.mu.Lock()
	if c.disabled {
		c.mu.Unlock()
		c.logger.Warn("capture disabled; ignoring start request", "requestId", requestID)
		return
	}
	if c.recorder != nil {
		c.mu.Unlock()
		c.logger.Warn("recorder already active; ignoring start request", "requestId", requestID)
		return
	}
	c.mu.Unlock()

	recorder, err := c.source.Acquire(ctx)
	if err != nil {
		c.recordFatal(requestID, err)
		c.showError(ctx, "Microphone unavailable")
		return
	}

	mimeType := SelectMimeType(c.cfg.MimePreference, c.source)
	done := make(chan struct{})

	c.mu.Lock()
	c.recorder = recorder
	c.mimeType = mimeType
	c.collected = nil
	c.collectDone = done
	c.fatalErrors = 0
	c.watchdog = time.AfterFunc(c.cfg.WatchdogTimeout, c.watchdogFired)
	c.mu.Unlock()

	go c.collect(recorder, done)

	c.logger.Info("recording started", "requestId", requestID, "mimeType", mimeType)
	c.showState(ctx, indicator.State{Visible: true, Mode: indicator.ModeRecording})
}

// collect drains the recorder chunk stream into the session buffer.
func (c *Controller) collect(recorder Recorder, done chan struct{}) {
	defer close(done)
	for chunk := range recorder.Chunks() {
		c.mu.Lock()
		c.collected = append(c.collected, chunk)
		c.mu.Unlock()
	}
}

// finishSession stops the recorder, wraps the buffered PCM in a WAV
// container, and hands the snippet to upload and insertion.
func (c *Controller) finishSession(ctx context.Context, duration time.Duration) {
	chunks, mimeType, ok := c.teardownSession()
	if !ok {
		c.logger.Debug("press ended with no active recorder")
		return
	}

	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total == 0 {
		c.logger.Info("recording produced no audio; skipping upload")
		c.showState(ctx, indicator.State{})
		return
	}

	audio := make([][]byte, 0, len(chunks)+1)
	audio = append(audio, wavHeader(total))
	audio = append(audio, chunks...)

	payload, err := snippet.Build(audio, mimeType, duration)
	if err != nil {
		c.logger.Error("snippet build failed", "error", err.Error())
		c.showError(ctx, "Recording too large")
		return
	}

	c.logger.Info("recording finished",
		"durationMs", payload.DurationMS,
		"sizeBytes", payload.SizeBytes,
		"mimeType", payload.MimeType,
	)
	c.dispatchUpload(payload)
}

// cancelSession stops and discards the active recording and aborts any
// in-flight upload. Safe to call with no session active.
func (c *Controller) cancelSession(ctx context.Context, reason string) {
	c.abortUpload()

	if _, _, ok := c.teardownSession(); !ok {
		return
	}
	c.logger.Info("recording discarded", "reason", reason)
	c.showState(ctx, indicator.State{})
}

// teardownSession stops the recorder, cancels the watchdog, waits for the
// collector, and returns the buffered chunks. ok is false when no recorder
// was active.
func (c *Controller) teardownSession() (chunks [][]byte, mimeType string, ok bool) {
	c.mu.Lock()
	recorder := c.recorder
	done := c.collectDone
	watchdog := c.watchdog
	c.recorder = nil
	c.collectDone = nil
	c.watchdog = nil
	c.mu.Unlock()

	if recorder == nil {
		return nil, "", false
	}
	if watchdog != nil {
		watchdog.Stop()
	}

	if err := recorder.Stop(); err != nil {
		c.logger.Warn("recorder stop failed", "error", err.Error())
	}
	if done != nil {
		<-done
	}

	c.mu.Lock()
	chunks = c.collected
	mimeType = c.mimeType
	c.collected = nil
	c.mu.Unlock()
	return chunks, mimeType, true
}

// watchdogFired force-stops a recording that exceeded the timeout.
func (c *Controller) watchdogFired() {
	if _, _, ok := c.teardownSession(); !ok {
		return
	}

	timeout := c.cfg.WatchdogTimeout
	c.logger.Error("recording watchdog fired; discarding session", "timeout", timeout.String())
	c.showError(context.Background(), fmt.Sprintf("Recording stopped after %s", timeout))

	if c.onWatchdog != nil {
		c.onWatchdog("recording watchdog timeout")
	}
}

// dispatchUpload starts the transcription round trip in the background.
// Starting a new upload aborts the previous one.
func (c *Controller) dispatchUpload(payload snippet.Payload) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.uploadMu.Lock()
	if c.uploadCancel != nil {
		c.uploadCancel()
	}
	c.uploadCancel = cancel
	c.uploadDone = done
	c.uploadMu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		c.uploadAndInsert(ctx, payload)
	}()
}

// abortUpload cancels the in-flight upload, if any, and waits for it to
// unwind.
func (c *Controller) abortUpload() {
	c.uploadMu.Lock()
	cancel := c.uploadCancel
	done := c.uploadDone
	c.uploadCancel = nil
	c.uploadDone = nil
	c.uploadMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// uploadAndInsert runs the transcribe request and inserts the result.
func (c *Controller) uploadAndInsert(ctx context.Context, payload snippet.Payload) {
	c.showState(ctx, indicator.State{Visible: true, Mode: indicator.ModeProcessing})

	result := c.uploader.Transcribe(ctx, payload, upload.Options{
		OnAttempt: func(attempt, max int) {
			if attempt <= 1 {
				return
			}
			c.showState(ctx, indicator.State{
				Visible: true,
				Mode:    indicator.ModeProcessing,
				Text:    fmt.Sprintf("Transcribing… (attempt %d of %d)", attempt, max),
			})
		},
	})
	if ctx.Err() != nil {
		c.logger.Info("upload aborted")
		return
	}
	if !result.OK {
		c.logger.Error("transcription failed",
			"attempts", result.Attempts,
			"status", result.Status,
			"error", result.Err,
		)
		c.showError(ctx, "Transcription failed")
		return
	}

	text := transcript.Normalize(result.Transcript, c.cfg.Transcript)
	if text == "" {
		c.logger.Info("transcription returned empty text")
		c.showState(ctx, indicator.State{})
		return
	}

	insertion := c.inserter.Insert(ctx, text)
	if !insertion.OK {
		c.logger.Error("text insertion failed", "reason", string(insertion.Reason))
		c.showError(ctx, "Could not insert text")
		return
	}

	c.logger.Info("transcript inserted",
		"method", string(insertion.Method),
		"chars", len(text),
		"confidence", result.Confidence,
	)
	c.showState(ctx, indicator.State{})
}

// recordFatal counts an acquisition failure and disables the feature once
// the threshold is reached.
func (c *Controller) recordFatal(requestID int64, err error) {
	c.mu.Lock()
	c.fatalErrors++
	count := c.fatalErrors
	disable := count >= c.cfg.FatalThreshold && !c.disabled
	if disable {
		c.disabled = true
	}
	c.mu.Unlock()

	c.logger.Error("recorder acquisition failed",
		"requestId", requestID,
		"error", err.Error(),
		"consecutiveFailures", count,
	)
	if disable {
		c.logger.Error("disabling dictation after repeated capture failures", "failures", count)
		if c.onDisable != nil {
			c.onDisable()
		}
	}
}

func (c *Controller) showState(ctx context.Context, state indicator.State) {
	if c.indicator == nil {
		return
	}
	c.indicator.Update(ctx, state)
}

func (c *Controller) showError(ctx context.Context, text string) {
	c.showState(ctx, indicator.State{Visible: true, Mode: indicator.ModeError, Text: text})
}
