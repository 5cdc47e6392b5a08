package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadFunc is invoked when a watched file settles after a change
type ReloadFunc func(ctx context.Context) error

// Watcher triggers reloads when artifact files change on disk.
// Parent directories are watched so editors that replace files atomically are seen.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	handlers map[string]ReloadFunc
	timers   map[string]*time.Timer
	dirs     map[string]bool
}

// NewWatcher creates a file watcher with the given debounce window
func NewWatcher(debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		logger:   logger.Named("watcher"),
		handlers: make(map[string]ReloadFunc),
		timers:   make(map[string]*time.Timer),
		dirs:     make(map[string]bool),
	}, nil
}

// Add registers fn to run when path is created, written or renamed into place
func (w *Watcher) Add(path string, fn ReloadFunc) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(abs)
	if !w.dirs[dir] {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.handlers[abs] = fn
	return nil
}

// Run dispatches file events until ctx is cancelled or the watcher is closed
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.schedule(ctx, filepath.Clean(event.Name))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scheduleLocked(ctx, path)
}

// scheduleLocked must be called with w.mu held
func (w *Watcher) scheduleLocked(ctx context.Context, path string) {
	fn, ok := w.handlers[path]
	if !ok {
		return
	}
	if t, pending := w.timers[path]; pending {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		// a newer event may have replaced this timer after it fired
		if w.timers[path] == timer {
			delete(w.timers, path)
		}
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.logger.Info("reloading after file change", zap.String("path", path))
		if err := fn(ctx); err != nil {
			w.logger.Error("reload failed, keeping previous data", zap.String("path", path), zap.Error(err))
		}
	})
	w.timers[path] = timer
}

// Close stops the watcher and any pending reloads
func (w *Watcher) Close() error {
	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	return w.fsw.Close()
}
