// Package upload submits dictation snippets to the transcription endpoint
// with bounded, cancellable retry.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sbpk516/signalhub-dictation/internal/snippet"
)

// Result is the tagged outcome of one snippet transcription.
type Result struct {
	OK         bool
	Transcript string
	Confidence float64
	Err        error
	Status     int
	Retryable  bool
	Attempts   int
}

// Options tune one Transcribe call.
type Options struct {
	// RequestID correlates all retry attempts server-side; a fresh UUID is
	// generated when empty.
	RequestID string
	// OnAttempt is invoked before each attempt with (n, max) for progress UI.
	OnAttempt func(attempt, max int)
}

// request is the wire shape of one upload attempt.
type request struct {
	Base64Audio string `json:"base64Audio"`
	MimeType    string `json:"mimeType"`
	DurationMS  int64  `json:"durationMs"`
	SizeBytes   int    `json:"sizeBytes"`
	RequestID   string `json:"requestId"`
	Attempt     int    `json:"attempt"`
}

// response is the wire shape of the transcription service reply. The
// retryable flag is authoritative for error outcomes.
type response struct {
	OK         bool    `json:"ok"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
	Status     int     `json:"status"`
	Retryable  *bool   `json:"retryable"`
}

// Client uploads snippets to one transcription endpoint. It never runs more
// than one upload per call; callers own concurrency via context cancellation.
type Client struct {
	endpoint    string
	http        *http.Client
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	logger      *slog.Logger
}

// Config holds client construction knobs.
type Config struct {
	Endpoint    string
	MaxAttempts int
	BaseBackoff time.Duration
	Timeout     time.Duration
}

// NewClient builds an upload client with sane retry defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		endpoint:    cfg.Endpoint,
		http:        &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
		maxBackoff:  8 * time.Second,
		logger:      logger,
	}
}

// Transcribe uploads one snippet, retrying transient failures with
// exponential backoff until attempts are exhausted or ctx is cancelled.
// Non-retryable outcomes return immediately; on exhaustion the last error is
// returned verbatim.
func (c *Client) Transcribe(ctx context.Context, payload snippet.Payload, opts Options) Result {
	requestID := opts.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	var last Result
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if opts.OnAttempt != nil {
			opts.OnAttempt(attempt, c.maxAttempts)
		}

		last = c.attempt(ctx, payload, requestID, attempt)
		last.Attempts = attempt
		if last.OK || !last.Retryable {
			return last
		}

		c.logger.Warn("transcription attempt failed",
			"request_id", requestID,
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"status", last.Status,
			"error", errString(last.Err),
		)

		if attempt == c.maxAttempts {
			break
		}
		if err := sleepBackoff(ctx, c.backoff(attempt)); err != nil {
			last.Err = err
			last.Retryable = false
			return last
		}
	}
	return last
}

// attempt performs one HTTP roundtrip and classifies the outcome.
func (c *Client) attempt(ctx context.Context, payload snippet.Payload, requestID string, attempt int) Result {
	body, err := json.Marshal(request{
		Base64Audio: payload.Base64Audio,
		MimeType:    payload.MimeType,
		DurationMS:  payload.DurationMS,
		SizeBytes:   payload.SizeBytes,
		RequestID:   requestID,
		Attempt:     attempt,
	})
	if err != nil {
		return Result{Err: fmt.Errorf("encode upload request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Errorf("build upload request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failures are retryable unless the caller cancelled.
		retryable := !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		return Result{Err: fmt.Errorf("upload snippet: %w", err), Retryable: retryable}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{Err: fmt.Errorf("read upload response: %w", err), Status: resp.StatusCode, Retryable: true}
	}

	var decoded response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{
			Err:       fmt.Errorf("decode upload response (status %d): %w", resp.StatusCode, err),
			Status:    resp.StatusCode,
			Retryable: resp.StatusCode >= 500,
		}
	}

	if decoded.OK && resp.StatusCode < 400 {
		return Result{OK: true, Transcript: decoded.Transcript, Confidence: decoded.Confidence, Status: resp.StatusCode}
	}

	status := decoded.Status
	if status == 0 {
		status = resp.StatusCode
	}
	message := decoded.Error
	if message == "" {
		message = fmt.Sprintf("transcription service returned status %d", status)
	}

	// The server's retryable flag is authoritative when present; without it
	// only 5xx counts as transient.
	retryable := status >= 500
	if decoded.Retryable != nil {
		retryable = *decoded.Retryable
	}
	return Result{
		Err:       errors.New(message),
		Status:    status,
		Retryable: retryable,
	}
}

// backoff computes the exponential-ish delay before the next attempt.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.baseBackoff << (attempt - 1)
	if delay > c.maxBackoff {
		delay = c.maxBackoff
	}
	return delay
}

// sleepBackoff waits without outliving the caller's context.
func sleepBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
