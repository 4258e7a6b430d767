package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Store holds the active configuration and swaps it atomically on reload.
// Readers never block and always see a complete, validated Config.
type Store struct {
	path    string
	current atomic.Pointer[Config]
	logger  *slog.Logger

	mu        sync.Mutex
	listeners []func(*Config)
}

// NewStore loads the configuration at path with environment overrides.
// An empty path starts from the defaults.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, logger: logger}
	s.current.Store(cfg)
	return s, nil
}

// NewStaticStore returns a store holding cfg that never reloads.
func NewStaticStore(cfg *Config) *Store {
	s := &Store{logger: slog.Default()}
	s.current.Store(cfg)
	return s
}

// Get returns the active configuration. The result must not be modified.
func (s *Store) Get() *Config {
	return s.current.Load()
}

// OnChange registers fn to be called with every successfully reloaded
// configuration.
func (s *Store) OnChange(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reload re-reads the configuration file. On failure the active
// configuration is kept and the error returned.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	cfg, err := LoadConfigWithEnvOverrides(s.path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	s.current.Store(cfg)

	s.mu.Lock()
	listeners := append([]func(*Config){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}

// Watch reloads the configuration whenever its file changes, until ctx is
// cancelled. The parent directory is watched so that editors replacing the
// file by rename are noticed. Changes within debounce of each other cause a
// single reload.
func (s *Store) Watch(ctx context.Context, debounce time.Duration) error {
	if s.path == "" {
		return fmt.Errorf("configuration has no file to watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer w.Close()

	target := filepath.Clean(s.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", target, err)
	}
	s.logger.Info("Configuration watcher started", "path", target)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Configuration watcher stopped")
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target || event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				if err := s.Reload(); err != nil {
					s.logger.Error("Configuration reload failed", "path", target, "error", err)
					return
				}
				s.logger.Info("Configuration reloaded", "path", target)
			})

		case err, ok := <-w.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			s.logger.Error("Configuration watcher error", "error", err)
		}
	}
}
