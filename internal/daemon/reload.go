package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/1broseidon/wsinterop/internal/config"
)

const reloadDebounce = 200 * time.Millisecond

// ConfigWatcher reloads the config file when it changes on disk.
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*config.Config)
	logger   *slog.Logger
	debounce time.Duration
}

// NewConfigWatcher watches the directory holding path; editors that save
// by rename never touch the original inode.
func NewConfigWatcher(path string, onChange func(*config.Config), logger *slog.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}
	return &ConfigWatcher{
		path:     path,
		watcher:  watcher,
		onChange: onChange,
		logger:   logger,
		debounce: reloadDebounce,
	}, nil
}

// Run delivers reloaded configs until ctx is done. Invalid files are
// logged and skipped; the previous config stays in effect.
func (w *ConfigWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	target := filepath.Base(w.path)
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	for {
		select {
		case <-ctx.Done():
			debounceTimer.Stop()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			res, err := config.LoadFromPath(w.path)
			if err != nil {
				w.logger.Warn("config reload failed", "path", w.path, "error", err)
				continue
			}
			w.logger.Info("config reloaded", "path", w.path)
			w.onChange(res.Config)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}
