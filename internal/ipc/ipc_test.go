package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sbpk516/signalhub-dictation/internal/event"
)

func testSocketPath(t *testing.T) string {
	t.Helper()
	// Socket paths have a tight length limit; keep the name short.
	return filepath.Join(t.TempDir(), "d.sock")
}

func startServer(t *testing.T, handler Handler) (string, context.CancelFunc) {
	t.Helper()
	path := testSocketPath(t)

	ctx, cancel := context.WithCancel(context.Background())
	listener, err := Acquire(ctx, path, 200*time.Millisecond, 1, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Serve(ctx, listener, handler)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return path, cancel
}

func TestSendRoundTrip(t *testing.T) {
	path, _ := startServer(t, HandlerFunc(func(_ context.Context, req Request) Response {
		require.Equal(t, "status", req.Command)
		return Response{OK: true, State: "idle"}
	}))

	resp, err := Send(context.Background(), path, Request{Command: "status"}, time.Second)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "idle", resp.State)
}

func TestSendCarriesRequestID(t *testing.T) {
	path, _ := startServer(t, HandlerFunc(func(_ context.Context, req Request) Response {
		require.Equal(t, "grant", req.Command)
		require.Equal(t, int64(42), req.RequestID)
		return Response{OK: true}
	}))

	resp, err := Send(context.Background(), path, Request{Command: "grant", RequestID: 42}, time.Second)
	require.NoError(t, err)
	require.True(t, resp.OK)
}

func TestProbeDistinguishesLiveAndStale(t *testing.T) {
	path, cancel := startServer(t, HandlerFunc(func(context.Context, Request) Response {
		return Response{OK: true}
	}))

	alive, err := Probe(context.Background(), path, time.Second)
	require.NoError(t, err)
	require.True(t, alive)

	cancel()
	require.Eventually(t, func() bool {
		alive, err := Probe(context.Background(), path, 200*time.Millisecond)
		return err == nil && !alive
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAcquireRejectsLiveOwner(t *testing.T) {
	path, _ := startServer(t, HandlerFunc(func(context.Context, Request) Response {
		return Response{OK: true}
	}))

	_, err := Acquire(context.Background(), path, 200*time.Millisecond, 1, nil)
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestAcquireRemovesStaleSocket(t *testing.T) {
	path := testSocketPath(t)

	ctx := context.Background()
	first, err := Acquire(ctx, path, 200*time.Millisecond, 1, nil)
	require.NoError(t, err)
	// Close without unlinking to simulate a crashed owner.
	first.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, first.Close())

	second, err := Acquire(ctx, path, 200*time.Millisecond, 2, nil)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

type streamingHandler struct {
	envelopes []event.Envelope
}

func (h *streamingHandler) Handle(_ context.Context, req Request) Response {
	if req.Command == "subscribe" {
		return Response{OK: true, Message: "streaming"}
	}
	return Response{OK: false, Error: "unknown command"}
}

func (h *streamingHandler) StreamEvents() (<-chan event.Envelope, func()) {
	ch := make(chan event.Envelope, len(h.envelopes))
	for _, envelope := range h.envelopes {
		ch <- envelope
	}
	close(ch)
	return ch, func() {}
}

func TestSubscribeStreamsEnvelopes(t *testing.T) {
	first, err := event.Encode(event.PressStart{DurationMS: 0})
	require.NoError(t, err)
	second, err := event.Encode(event.PressEnd{DurationMS: 900})
	require.NoError(t, err)

	path, _ := startServer(t, &streamingHandler{envelopes: []event.Envelope{first, second}})

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	require.NoError(t, json.NewEncoder(conn).Encode(Request{Command: "subscribe"}))

	reader := bufio.NewReader(conn)

	var resp Response
	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(line, &resp))
	require.True(t, resp.OK)

	var got []event.Envelope
	for i := 0; i < 2; i++ {
		line, err := reader.ReadBytes('\n')
		require.NoError(t, err)
		var envelope event.Envelope
		require.NoError(t, json.Unmarshal(line, &envelope))
		got = append(got, envelope)
	}

	require.Equal(t, event.TypePressStart, got[0].Type)
	require.Equal(t, event.TypePressEnd, got[1].Type)

	decoded, err := got[1].Decode()
	require.NoError(t, err)
	require.Equal(t, event.PressEnd{DurationMS: 900}, decoded)
}
