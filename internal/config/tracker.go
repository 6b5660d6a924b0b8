package config

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/firewood/mcrouter/internal/logging"
)

// Tracker owns the current configuration snapshot and the reload metadata
// the stats subsystem reports (last attempt, last success, failure count).
// Reloads swap the snapshot pointer atomically; readers never block.
type Tracker struct {
	path   string
	loader *Loader

	current atomic.Pointer[Snapshot]

	lastSuccess atomic.Uint64 // unix seconds
	lastAttempt atomic.Uint64
	failures    atomic.Uint64

	watcher  *fsnotify.Watcher
	debounce time.Duration
	done     chan struct{}
}

// NewTracker loads the file once and returns a tracker holding the result.
func NewTracker(path string) (*Tracker, error) {
	t := &Tracker{
		path:     path,
		loader:   NewLoader(),
		debounce: 500 * time.Millisecond,
		done:     make(chan struct{}),
	}
	if err := t.reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Current returns the active snapshot.
func (t *Tracker) Current() *Snapshot {
	return t.current.Load()
}

// LastSuccess returns the unix time of the last successful load.
func (t *Tracker) LastSuccess() uint64 { return t.lastSuccess.Load() }

// LastAttempt returns the unix time of the last load attempt.
func (t *Tracker) LastAttempt() uint64 { return t.lastAttempt.Load() }

// Failures returns the number of failed load attempts.
func (t *Tracker) Failures() uint64 { return t.failures.Load() }

// reload attempts a load. On failure the previous snapshot stays current.
func (t *Tracker) reload() error {
	t.lastAttempt.Store(uint64(time.Now().Unix()))
	cfg, err := t.loader.Load(t.path)
	if err != nil {
		t.failures.Add(1)
		return fmt.Errorf("config reload: %w", err)
	}
	t.current.Store(NewSnapshot(cfg))
	t.lastSuccess.Store(uint64(time.Now().Unix()))
	return nil
}

// Watch starts reloading on file changes until Stop is called. The parent
// directory is watched because editors typically replace the file.
func (t *Tracker) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	t.watcher = w
	if err := w.Add(filepath.Dir(t.path)); err != nil {
		w.Close()
		return err
	}
	go t.watch()
	return nil
}

func (t *Tracker) watch() {
	var debounceTimer *time.Timer
	for {
		select {
		case <-t.done:
			return
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(t.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Debounce rapid events
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(t.debounce, func() {
				if err := t.reload(); err != nil {
					logging.Error("failed to reload config", zap.Error(err))
					return
				}
				logging.Info("configuration reloaded", zap.String("path", t.path))
			})
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("config watcher error", zap.Error(err))
		}
	}
}

// Stop ends watching. Safe to call when Watch was never started.
func (t *Tracker) Stop() {
	close(t.done)
	if t.watcher != nil {
		t.watcher.Close()
	}
}
