package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.conf")
	require.NoError(t, os.WriteFile(path, []byte(`{"upload": {"max_attempts": 2}}`), 0o644))

	var (
		mu     sync.Mutex
		loads  []Loaded
		gotOne = make(chan struct{}, 4)
	)
	watcher := NewWatcher(nil, path, func(loaded Loaded) {
		mu.Lock()
		loads = append(loads, loaded)
		mu.Unlock()
		gotOne <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	// Give the watcher a moment to register before mutating the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"upload": {"max_attempts": 7}}`), 0o644))

	select {
	case <-gotOne:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}

	mu.Lock()
	require.NotEmpty(t, loads)
	require.Equal(t, 7, loads[len(loads)-1].Config.Upload.MaxAttempts)
	mu.Unlock()

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcherKeepsPreviousConfigOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.conf")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	notified := make(chan Loaded, 4)
	watcher := NewWatcher(nil, path, func(loaded Loaded) { notified <- loaded })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = watcher.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"dictation": {"shortcut": "A+B"}}`), 0o644))

	select {
	case loaded := <-notified:
		t.Fatalf("unexpected notification for invalid config: %+v", loaded.Config.Dictation)
	case <-time.After(600 * time.Millisecond):
	}
}
