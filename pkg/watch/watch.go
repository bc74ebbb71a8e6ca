// Package watch reloads a custom signature pack when its file changes and
// swaps the resulting registry into a running engine.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/brad07/codeshield/pkg/signatures"
)

// Target receives reloaded registries. *engine.Engine implements it.
type Target interface {
	SetRegistry(r *signatures.Registry)
}

// Config holds configuration for the signature watcher.
type Config struct {
	// Path is the custom signature pack to watch.
	Path string

	// DebounceInterval is the time to wait before reloading after changes.
	DebounceInterval time.Duration

	Logger *zap.Logger
}

// DefaultConfig returns a Config with a 500ms debounce.
func DefaultConfig(path string) Config {
	return Config{
		Path:             path,
		DebounceInterval: 500 * time.Millisecond,
	}
}

// LoadRegistry parses the pack at path and appends its signatures to base.
// A custom signature may not reuse a built-in id.
func LoadRegistry(base *signatures.Registry, path string) (*signatures.Registry, error) {
	pack, err := signatures.LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	r, err := base.Extend(pack.Signatures...)
	if err != nil {
		return nil, fmt.Errorf("custom signatures %s: %w", path, err)
	}
	return r, nil
}

// Watcher monitors a custom signature file.
type Watcher struct {
	config  Config
	base    *signatures.Registry
	target  Target
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	reloads  atomic.Int64
	failures atomic.Int64

	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// New creates a watcher that extends base with the custom pack and pushes
// every successful reload to target.
func New(base *signatures.Registry, target Target, config Config) (*Watcher, error) {
	if config.Path == "" {
		return nil, errors.New("watch: path is required")
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig(config.Path).DebounceInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		config:  config,
		base:    base,
		target:  target,
		watcher: fsWatcher,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Reload re-reads the custom pack and swaps it into the target. On error the
// target keeps its current registry.
func (w *Watcher) Reload() error {
	r, err := LoadRegistry(w.base, w.config.Path)
	if err != nil {
		w.failures.Add(1)
		w.logger.Error("signature reload failed, keeping previous signatures",
			zap.String("path", w.config.Path), zap.Error(err))
		return err
	}

	w.target.SetRegistry(r)
	w.reloads.Add(1)
	w.logger.Info("custom signatures reloaded",
		zap.String("path", w.config.Path), zap.Int("signatures", r.Len()))
	return nil
}

// Reloads returns the number of successful reloads.
func (w *Watcher) Reloads() int64 { return w.reloads.Load() }

// Failures returns the number of failed reloads.
func (w *Watcher) Failures() int64 { return w.failures.Load() }

// Start begins watching for changes.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory so editors that replace the file are noticed.
	if err := w.watcher.Add(filepath.Dir(w.config.Path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.config.Path, err)
	}

	go w.watchLoop(ctx)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.doneCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	stopTimer := func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}

	file := filepath.Base(w.config.Path)

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return

		case <-w.stopCh:
			stopTimer()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				stopTimer()
				debounceTimer = time.NewTimer(w.config.DebounceInterval)
				debounceCh = debounceTimer.C
			}

		case <-debounceCh:
			_ = w.Reload()
			debounceCh = nil

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("signature watcher error", zap.Error(err))
		}
	}
}
