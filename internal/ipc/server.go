package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sbpk516/signalhub-dictation/internal/event"
)

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Streamer is implemented by handlers that can feed subscribe clients a live
// event stream. The returned cancel must be called when the client goes away.
type Streamer interface {
	StreamEvents() (<-chan event.Envelope, func())
}

// Serve accepts unix-socket clients until context cancellation or listener
// close. A "subscribe" command holds the connection open and streams event
// envelopes as NDJSON after the initial response.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	var wg sync.WaitGroup

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer c.Close()
			serveConn(ctx, c, handler)
		}(conn)
	}
}

func serveConn(ctx context.Context, c net.Conn, handler Handler) {
	reader := bufio.NewReader(c)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		_ = json.NewEncoder(c).Encode(Response{OK: false, Error: fmt.Sprintf("read request: %v", err)})
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		_ = json.NewEncoder(c).Encode(Response{OK: false, Error: fmt.Sprintf("decode request: %v", err)})
		return
	}

	resp := handler.Handle(ctx, req)
	if err := json.NewEncoder(c).Encode(resp); err != nil {
		return
	}

	if req.Command == "subscribe" && resp.OK {
		streamEvents(ctx, c, handler)
	}
}

// streamEvents writes event envelopes to the connection until the client
// disconnects or the server shuts down.
func streamEvents(ctx context.Context, c net.Conn, handler Handler) {
	streamer, ok := handler.(Streamer)
	if !ok {
		return
	}

	events, cancel := streamer.StreamEvents()
	defer cancel()

	encoder := json.NewEncoder(c)
	for {
		select {
		case <-ctx.Done():
			return
		case envelope, ok := <-events:
			if !ok {
				return
			}
			if err := encoder.Encode(envelope); err != nil {
				return
			}
		}
	}
}
