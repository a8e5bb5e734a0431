package upload

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sbpk516/signalhub-dictation/internal/snippet"
)

func testPayload() snippet.Payload {
	return snippet.Payload{Base64Audio: "UklGRg==", MimeType: "audio/wav", DurationMS: 1200, SizeBytes: 4}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		Endpoint:    server.URL,
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
	}, nil)
}

func TestTranscribeSuccessFirstAttempt(t *testing.T) {
	t.Parallel()

	var got request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "transcript": "hello world", "confidence": 0.93})
	})

	result := client.Transcribe(context.Background(), testPayload(), Options{RequestID: "req-1"})
	require.True(t, result.OK)
	require.Equal(t, "hello world", result.Transcript)
	require.InEpsilon(t, 0.93, result.Confidence, 1e-9)
	require.Equal(t, 1, result.Attempts)

	require.Equal(t, "req-1", got.RequestID)
	require.Equal(t, 1, got.Attempt)
	require.Equal(t, "UklGRg==", got.Base64Audio)
	require.Equal(t, 4, got.SizeBytes)
}

func TestTranscribeRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream flapping"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "transcript": "third time lucky", "confidence": 0.8})
	})

	var attempts []int
	result := client.Transcribe(context.Background(), testPayload(), Options{
		OnAttempt: func(n, max int) {
			require.Equal(t, 3, max)
			attempts = append(attempts, n)
		},
	})
	require.True(t, result.OK)
	require.Equal(t, 3, result.Attempts)
	require.Equal(t, []int{1, 2, 3}, attempts)
}

func TestTranscribeServerRetryableFalseIsAuthoritative(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": false, "error": "payload rejected", "status": 500, "retryable": false,
		})
	})

	result := client.Transcribe(context.Background(), testPayload(), Options{})
	require.False(t, result.OK)
	require.EqualValues(t, 1, calls.Load())
	require.EqualError(t, result.Err, "payload rejected")
	require.False(t, result.Retryable)
}

func TestTranscribeValidationErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "unsupported mimeType", "status": 400})
	})

	result := client.Transcribe(context.Background(), testPayload(), Options{})
	require.False(t, result.OK)
	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, 400, result.Status)
}

func TestTranscribeExhaustionReturnsLastErrorVerbatim(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "model still loading", "retryable": true})
	})

	result := client.Transcribe(context.Background(), testPayload(), Options{})
	require.False(t, result.OK)
	require.Equal(t, 3, result.Attempts)
	require.EqualError(t, result.Err, "model still loading")
	require.True(t, result.Retryable)
}

func TestTranscribeCancelledContextAbortsRetryLoop(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	client.baseBackoff = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- client.Transcribe(ctx, testPayload(), Options{}) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case result := <-done:
		require.False(t, result.OK)
		require.ErrorIs(t, result.Err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("transcribe did not abort after cancellation")
	}
}

func TestTranscribeGeneratesRequestIDWhenUnset(t *testing.T) {
	t.Parallel()

	var got request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "transcript": "x", "confidence": 1})
	})

	result := client.Transcribe(context.Background(), testPayload(), Options{})
	require.True(t, result.OK)
	require.NotEmpty(t, got.RequestID)
}
