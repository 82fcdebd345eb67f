package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] polls when no interval is
// given.
const DefaultWatchInterval = 5 * time.Second

// ErrUnchanged is returned by [Watcher.Reload] when the file content equals
// the active config.
var ErrUnchanged = errors.New("config: file unchanged")

// Watcher keeps a config file in sync with the running daemon. It polls the
// file's modification time and re-parses only when it moved; the reload is
// applied only when the SHA-256 of the content differs from the active
// version and the new content validates. Invalid edits are logged and the
// previous config stays active.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)
	onError  func(error)

	active atomic.Pointer[snapshot]

	// reloadMu serialises polls and explicit reloads so onChange calls never
	// overlap.
	reloadMu sync.Mutex
	// failedMtime is the mtime of the last file version that failed to
	// load. Polls skip it so one bad edit is reported once. Guarded by
	// reloadMu.
	failedMtime time.Time

	cancel   context.CancelFunc
	loopDone chan struct{}
}

// snapshot is one accepted version of the file.
type snapshot struct {
	cfg   *Config
	hash  [sha256.Size]byte
	mtime time.Time
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Default: [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithErrorHandler sets the function called on the polling goroutine when a
// changed file fails to load. Default: log a warning.
func WithErrorHandler(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		if fn != nil {
			w.onError = fn
		}
	}
}

// NewWatcher loads path, which must hold a valid config, and starts polling
// it. onChange runs on the polling goroutine after every accepted change.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		loopDone: make(chan struct{}),
	}
	w.onError = func(err error) {
		slog.Warn("config reload failed, keeping previous config", "path", w.path, "err", err)
	}
	for _, o := range opts {
		o(w)
	}

	snap, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.active.Store(snap)

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.loop(ctx)
	return w, nil
}

// Current returns the active config.
func (w *Watcher) Current() *Config {
	return w.active.Load().cfg
}

// Stop ends polling and waits for an in-flight reload to finish. It is safe
// to call more than once.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.loopDone
}

// Reload reads the file now, ignoring its modification time. It returns
// [ErrUnchanged] when the content matches the active config, or the parse
// or validation error when the file is invalid.
func (w *Watcher) Reload() error {
	return w.reload(true)
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.loopDone)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.reload(false); err != nil && !errors.Is(err, ErrUnchanged) {
				w.onError(err)
			}
		}
	}
}

func (w *Watcher) reload(force bool) error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	prev := w.active.Load()
	if !force {
		info, err := os.Stat(w.path)
		if err != nil {
			return err
		}
		mtime := info.ModTime()
		if mtime.Equal(prev.mtime) || mtime.Equal(w.failedMtime) {
			return ErrUnchanged
		}
		w.failedMtime = mtime
	}

	next, err := w.read()
	if err != nil {
		return err
	}
	w.failedMtime = time.Time{}
	if next.hash == prev.hash {
		// Touched but not edited: remember the mtime so the next poll is cheap.
		w.active.Store(&snapshot{cfg: prev.cfg, hash: prev.hash, mtime: next.mtime})
		return ErrUnchanged
	}

	w.active.Store(next)
	slog.Info("config reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(prev.cfg, next.cfg)
	}
	return nil
}

// read parses and validates the file and records its hash and mtime.
func (w *Watcher) read() (*snapshot, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &snapshot{cfg: cfg, hash: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
