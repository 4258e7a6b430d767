package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/gateway/pkg/config"
)

// ReloadEvent describes one reload attempt.
type ReloadEvent struct {
	// Generation is the rule set active after the attempt.
	Generation string
	Rules      int
	Err        error
	Duration   time.Duration
}

// Manager holds the active rule set and replaces it atomically on reload.
// Evaluations in flight keep using the rule set they started with. A reload
// that fails keeps the previous rule set.
type Manager struct {
	loader *Loader
	path   string
	cfg    config.RulesConfig
	logger *slog.Logger

	current atomic.Pointer[RuleSet]

	mu        sync.Mutex
	listeners []func(ReloadEvent)
}

// NewManager loads the rule file named by cfg and returns a manager serving
// it.
func NewManager(ctx context.Context, loader *Loader, cfg *config.RulesConfig) (*Manager, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader cannot be nil")
	}
	if cfg == nil {
		cfg = &config.Default().Rules
	}

	m := &Manager{
		loader: loader,
		path:   cfg.FilePath,
		cfg:    *cfg,
		logger: loader.logger,
	}
	if err := m.Reload(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Current returns the active rule set.
func (m *Manager) Current() *RuleSet {
	return m.current.Load()
}

// OnReload registers fn to be called after every reload attempt.
func (m *Manager) OnReload(fn func(ReloadEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Reload reads the rule file again and swaps in the new rule set.
func (m *Manager) Reload(ctx context.Context) error {
	start := time.Now()
	rs, err := m.loader.LoadFile(ctx, m.path)

	event := ReloadEvent{Err: err, Duration: time.Since(start)}
	if err != nil {
		if prev := m.current.Load(); prev != nil {
			event.Generation, event.Rules = prev.Generation, prev.Len()
		}
		m.loader.metrics.RecordRuleReload("error", event.Rules)
		m.logger.ErrorContext(ctx, "Rule reload failed, keeping previous rules",
			"path", m.path,
			"generation", event.Generation,
			"error", err,
		)
	} else {
		m.current.Store(rs)
		event.Generation, event.Rules = rs.Generation, rs.Len()
		m.loader.metrics.RecordRuleReload("success", rs.Len())
	}

	m.mu.Lock()
	listeners := append([]func(ReloadEvent){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(event)
	}
	return err
}

// Watch reloads the rule file on change until ctx is cancelled. It blocks.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := NewFileWatcher(&FileWatcherConfig{
		Path:             m.path,
		DebounceInterval: m.cfg.DebounceInterval,
	}, m.logger)
	if err != nil {
		return err
	}
	defer w.Stop()

	return w.Watch(ctx, func() error {
		return m.Reload(ctx)
	})
}
