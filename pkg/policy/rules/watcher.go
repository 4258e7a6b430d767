package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the quiet period used when none is configured.
const DefaultDebounceInterval = 100 * time.Millisecond

// reloadOps are the events that can change what the rule file contains.
// Chmod is left out: editors touch permissions without changing content.
const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// FileWatcherConfig names the rule file to follow.
type FileWatcherConfig struct {
	Path string

	// DebounceInterval coalesces the burst of events one save produces.
	// Zero means DefaultDebounceInterval.
	DebounceInterval time.Duration
}

// FileWatcher turns changes to one rule file into debounced reload calls.
// It watches the file's directory rather than the file, so a rule set
// replaced by rename (editors, Kubernetes ConfigMap symlink swaps, git
// checkouts) keeps being followed.
type FileWatcher struct {
	path     string
	interval time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce *Debouncer

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewFileWatcher prepares a watcher for cfg.Path. An unset debounce
// interval is written back to cfg as the default.
func NewFileWatcher(cfg *FileWatcherConfig, logger *slog.Logger) (*FileWatcher, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, errors.New("rule watcher: no file to watch")
	}
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = DefaultDebounceInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("rule watcher: %w", err)
	}
	return &FileWatcher{
		path:     filepath.Clean(cfg.Path),
		interval: cfg.DebounceInterval,
		watcher:  w,
		logger:   logger.With("path", filepath.Clean(cfg.Path)),
		debounce: NewDebouncer(cfg.DebounceInterval),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Watch blocks, calling onReload once per burst of changes to the file,
// until ctx is done or Stop is called. A FileWatcher watches once.
// Reload failures are logged; the previous rule set stays in force.
func (fw *FileWatcher) Watch(ctx context.Context, onReload func() error) error {
	if !fw.started.CompareAndSwap(false, true) {
		return errors.New("rule watcher already running")
	}
	defer close(fw.done)

	select {
	case <-fw.stop:
		return errors.New("rule watcher stopped")
	default:
	}

	if err := fw.watcher.Add(filepath.Dir(fw.path)); err != nil {
		return fmt.Errorf("rule watcher: watch %s: %w", filepath.Dir(fw.path), err)
	}
	fw.logger.Info("Watching rule file", "debounce_ms", fw.interval.Milliseconds())

	reload := func() {
		if err := onReload(); err != nil {
			fw.logger.Error("Rule reload failed, keeping current rules", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("Rule watcher stopped", "reason", ctx.Err())
			return nil
		case <-fw.stop:
			fw.logger.Info("Rule watcher stopped", "reason", "stop")
			return nil
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return errors.New("rule watcher: event stream closed")
			}
			if !fw.affects(ev) {
				continue
			}
			fw.logger.Debug("Rule file event", "op", ev.Op.String())
			fw.debounce.Trigger(reload)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return errors.New("rule watcher: error stream closed")
			}
			fw.logger.Warn("Rule watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) affects(ev fsnotify.Event) bool {
	return ev.Op&reloadOps != 0 && filepath.Clean(ev.Name) == fw.path
}

// Stop ends Watch, waits for it to return and releases the watcher. Later
// calls do nothing.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.stop)
		if fw.started.Load() {
			<-fw.done
		}
		fw.debounce.Stop()
		if cerr := fw.watcher.Close(); cerr != nil {
			err = fmt.Errorf("rule watcher: close: %w", cerr)
		}
	})
	return err
}

// Debouncer runs only the last callback handed to Trigger, once no new
// trigger has arrived for the interval.
type Debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending func()
	stopped bool
}

func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger replaces the pending callback and restarts the quiet period.
// Triggers after Stop are dropped.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = callback
	if d.timer != nil {
		d.timer.Reset(d.interval)
		return
	}
	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	cb := d.pending
	d.pending = nil
	if d.stopped {
		cb = nil
	}
	d.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Stop discards any pending callback. The Debouncer cannot be restarted.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
}
