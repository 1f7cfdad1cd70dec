package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/moolen/mcpcall/internal/logging"
)

// ReloadCallback is called when the endpoints file is successfully reloaded.
// If the callback returns an error, it is logged but the watcher continues.
type ReloadCallback func(cfg *EndpointsFile) error

// EndpointsWatcherConfig holds configuration for the EndpointsWatcher.
type EndpointsWatcherConfig struct {
	// FilePath is the path to the endpoints YAML file to watch
	FilePath string

	// DebounceMillis coalesces multiple file change events within this
	// period into a single reload. Default: 500ms.
	DebounceMillis int
}

// EndpointsWatcher watches the endpoints file for changes and triggers
// reload callbacks with debouncing, so the long-running proxy can repoint
// its upstream without a restart. Invalid configs during reload are logged
// and the previous valid config stays in effect.
type EndpointsWatcher struct {
	config   EndpointsWatcherConfig
	callback ReloadCallback
	cancel   context.CancelFunc
	stopped  chan struct{}
	ready    chan struct{}
	logger   *logging.Logger
	mu       sync.Mutex

	debounceTimer *time.Timer
}

// NewEndpointsWatcher creates a new watcher for the given endpoints file.
func NewEndpointsWatcher(config EndpointsWatcherConfig, callback ReloadCallback) (*EndpointsWatcher, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("FilePath cannot be empty")
	}

	if callback == nil {
		return nil, fmt.Errorf("callback cannot be nil")
	}

	if config.DebounceMillis == 0 {
		config.DebounceMillis = 500
	}

	return &EndpointsWatcher{
		config:   config,
		callback: callback,
		stopped:  make(chan struct{}),
		ready:    make(chan struct{}),
		logger:   logging.GetLogger("config.watcher"),
	}, nil
}

// Start loads the initial config, calls the callback, and begins watching
// for file changes. Returns once the watcher is initialized; the watch loop
// runs until Stop() or context cancellation.
func (w *EndpointsWatcher) Start(ctx context.Context) error {
	initial, err := LoadEndpointsFile(w.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to load initial config: %w", err)
	}

	if err := w.callback(initial); err != nil {
		return fmt.Errorf("initial callback failed: %w", err)
	}

	w.logger.Info("Loaded initial endpoints config from %s", w.config.FilePath)

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	go w.watchLoop(watchCtx)

	// Wait for the watcher to be fully initialized so file changes are not
	// missed between Start returning and the fsnotify watch being added.
	select {
	case <-w.ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for file watcher to initialize")
	}

	return nil
}

// signalReady safely closes the ready channel exactly once
func (w *EndpointsWatcher) signalReady() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ready:
	default:
		close(w.ready)
	}
}

// watchLoop is the main file watching loop
func (w *EndpointsWatcher) watchLoop(ctx context.Context) {
	defer close(w.stopped)
	defer w.signalReady()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Error("Failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(w.config.FilePath); err != nil {
		w.logger.Error("Failed to watch file %s: %v", w.config.FilePath, err)
		return
	}

	w.logger.Info("Watching %s for changes (debounce: %dms)",
		w.config.FilePath, w.config.DebounceMillis)

	w.signalReady()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Context cancelled, stopping watcher")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			// Rename/Remove happen during atomic writes: the old file is
			// unlinked before the new one is renamed into place, so the
			// watch must be re-added on the new inode.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				if event.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
					time.Sleep(50 * time.Millisecond)
					if err := watcher.Add(w.config.FilePath); err != nil {
						w.logger.Warn("Failed to re-add watch after %s: %v", event.Op, err)
					}
				}
				w.handleFileChange(ctx)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error: %v", err)
		}
	}
}

// handleFileChange debounces by resetting a timer on each event.
func (w *EndpointsWatcher) handleFileChange(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(
		time.Duration(w.config.DebounceMillis)*time.Millisecond,
		func() {
			w.reloadConfig(ctx)
		},
	)
}

// reloadConfig reloads the file and calls the callback if it parses.
// Invalid configs don't crash the watcher; the previous config stays live.
func (w *EndpointsWatcher) reloadConfig(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	newConfig, err := LoadEndpointsFile(w.config.FilePath)
	if err != nil {
		w.logger.Warn("Failed to reload endpoints config (keeping previous): %v", err)
		return
	}

	if err := w.callback(newConfig); err != nil {
		w.logger.Warn("Reload callback error (continuing to watch): %v", err)
		return
	}

	w.logger.Info("Endpoints config reloaded from %s", w.config.FilePath)
}

// Stop gracefully stops the file watcher, waiting up to 5 seconds for the
// watch loop to exit.
func (w *EndpointsWatcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}

	select {
	case <-w.stopped:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for watcher to stop")
	}
}
