package config

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ReloadFunc is invoked with the new configuration after the watched file
// changes and parses successfully. A returned error is logged; the reload
// itself still stands.
type ReloadFunc func(*Config) error

// ErrWatcherClosed is returned by Close on an already-closed watcher.
var ErrWatcherClosed = errors.New("config: watcher already closed")

// Watcher reloads the configuration when the file on disk changes.
// The parent directory is watched rather than the file itself so atomic
// saves (write to temp, rename over) are detected. Rapid event bursts from
// editors are debounced.
type Watcher struct {
	fs       *fsnotify.Watcher
	path     string
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	callbacks []ReloadFunc
	closed    bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides the debounce delay (default 100ms).
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a watcher for the configuration file at path.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		fs:       fs,
		path:     abs,
		debounce: 100 * time.Millisecond,
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, opt := range opts {
		opt(w)
	}

	if err := fs.Add(filepath.Dir(abs)); err != nil {
		cancel()
		if closeErr := fs.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close fsnotify watcher after add failure")
		}
		return nil, err
	}

	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// OnReload registers a callback invoked after each successful reload.
// Callbacks run in registration order.
func (w *Watcher) OnReload(fn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Watch blocks processing file events until ctx is canceled. Only Write and
// Create events on the watched file trigger a reload; Chmod noise from
// indexers is ignored.
func (w *Watcher) Watch(ctx context.Context) error {
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	target := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timerMu.Unlock()
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				// A timer can fire after Close; the canceled context
				// keeps it from reloading into a torn-down process.
				select {
				case <-w.ctx.Done():
					return
				default:
				}
				w.reload()
			})
			timerMu.Unlock()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		log.Error().Err(err).Str("path", w.path).Msg("config reload failed, keeping previous config")
		return
	}

	log.Info().Str("path", w.path).Msg("config reloaded")

	w.mu.RLock()
	callbacks := make([]ReloadFunc, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, fn := range callbacks {
		if err := fn(cfg); err != nil {
			log.Error().Err(err).Msg("config reload callback error")
		}
	}
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	w.closed = true
	w.cancel()

	return w.fs.Close()
}
