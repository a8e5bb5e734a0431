package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watcher reloads the config file when it changes on disk and pushes the
// result to a listener. The containing directory is watched so editors that
// replace the file atomically are still observed.
type Watcher struct {
	logger *slog.Logger
	path   string
	notify func(Loaded)
}

// NewWatcher builds a watcher for the config at path. notify is called from
// the watch goroutine with every successfully reloaded config.
func NewWatcher(logger *slog.Logger, path string, notify func(Loaded)) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{logger: logger, path: path, notify: notify}
}

// Run blocks watching for changes until ctx is cancelled. Reload failures
// are logged and the previous config stays in effect.
func (w *Watcher) Run(ctx context.Context) error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fs.Close()

	dir := filepath.Dir(w.path)
	if err := fs.Add(dir); err != nil {
		return fmt.Errorf("watch config dir %q: %w", dir, err)
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Editors fire several events per save; collapse them.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case err, ok := <-fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err.Error())

		case <-reload:
			loaded, err := Load(w.path)
			if err != nil {
				w.logger.Error("config reload failed; keeping previous config", "error", err.Error())
				continue
			}
			w.logger.Info("config reloaded", "path", loaded.Path)
			if w.notify != nil {
				w.notify(loaded)
			}
		}
	}
}
