package cliconfig

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spool-labs/eventspool/pkg/log"
)

// Watcher monitors the config file via fsnotify and re-applies the tunable
// subset (flush interval, fetch bounds, log level) on change. Identity
// settings such as the write key and queue directory are fixed for the
// process lifetime and are never hot-reloaded.
type Watcher struct {
	path     string
	onChange func(Config)
	logger   log.Logger

	mu       sync.Mutex
	current  Config
	debounce *time.Timer
}

// NewWatcher creates a watcher over the config file at path. onChange
// receives the updated Config after every accepted reload.
func NewWatcher(path string, current Config, logger log.Logger, onChange func(Config)) *Watcher {
	return &Watcher{
		path:     path,
		onChange: onChange,
		logger:   logger,
		current:  current,
	}
}

// Run watches until the context ends. A missing or unwatchable file
// disables hot reload without failing the daemon.
func (w *Watcher) Run(ctx context.Context) {
	if w.path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("config watcher unavailable", log.Err(err))
		return
	}
	defer watcher.Close()

	// Watch the directory: editors replace the file on save, which drops a
	// watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		w.logger.Warn("config watcher unavailable", log.Str("path", w.path), log.Err(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounceReload(100 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) debounceReload(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, w.reload)
}

func (w *Watcher) reload() {
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", log.Str("path", w.path), log.Err(err))
		return
	}

	w.mu.Lock()
	next := w.current
	w.mu.Unlock()

	applyTunables(&next, fc)
	if err := next.Validate(); err != nil {
		w.logger.Warn("config reload rejected", log.Err(err))
		return
	}

	w.mu.Lock()
	w.current = next
	w.mu.Unlock()

	w.logger.Info("config reloaded", log.Str("path", w.path))
	if w.onChange != nil {
		w.onChange(next)
	}
}

// applyTunables copies only the hot-reloadable fields.
func applyTunables(cfg *Config, fc FileConfig) {
	s := newConfigSetter(nil)
	// An unparsable duration leaves the previous value in place.
	_ = s.setDuration("flush-interval", fc.FlushInterval, &cfg.FlushInterval)
	s.setInt("max-fetch-files", fc.MaxFetchFiles, &cfg.MaxFetchFiles)
	s.setInt("max-fetch-bytes", fc.MaxFetchBytes, &cfg.MaxFetchBytes)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
}
