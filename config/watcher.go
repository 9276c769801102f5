package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce is how long to wait for more changes before reloading,
// so a single save that arrives as several write events reloads once.
const watchDebounce = 500 * time.Millisecond

// Watcher reloads a config file when it changes on disk and applies the
// settings that are safe to change at runtime. Only the log level is
// applied live; everything else takes effect on restart.
type Watcher struct {
	path    string
	level   *slog.LevelVar
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   bool
}

// NewWatcher creates a watcher for the given config file. Parsed log
// level changes are applied to level.
func NewWatcher(path string, level *slog.LevelVar, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:    filepath.Clean(path),
		level:   level,
		logger:  logger,
		watcher: fsw,
	}, nil
}

// Start begins watching. The watch goes on the directory rather than the
// file itself, which survives the rename-and-replace writes editors and
// deployment tools do.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch config directory: %w", err)
	}

	go w.processEvents(ctx)

	w.logger.Info("Config watcher started", "path", w.path)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// processEvents handles fsnotify events with debouncing.
func (w *Watcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(watchDebounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.pendingMu.Lock()
				w.pending = true
				w.pendingMu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

// flushPending reloads once if any change arrived since the last tick.
func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	pending := w.pending
	w.pending = false
	w.pendingMu.Unlock()

	if pending {
		w.reload()
	}
}

// reload re-reads the config file and applies the log level. A file
// that is invalid or mid-write is skipped and the previous settings
// stay in effect.
func (w *Watcher) reload() {
	cfg, err := LoadFromFile(w.path)
	if err != nil {
		w.logger.Warn("Config reload skipped", "path", w.path, "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Warn("Config reload skipped", "path", w.path, "error", err)
		return
	}

	if w.level == nil {
		return
	}
	newLevel := cfg.Logging.SlogLevel()
	if w.level.Level() != newLevel {
		w.level.Set(newLevel)
		w.logger.Info("Log level changed", "level", cfg.Logging.Level)
	}
}
