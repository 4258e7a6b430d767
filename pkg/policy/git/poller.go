package git

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ReloadFunc loads the rule file of commit c from the working tree.
type ReloadFunc func(ctx context.Context, c *Commit) error

// Poller fetches the repository periodically and reloads the rules when the
// rule file changes.
type Poller struct {
	repo     *Repository
	interval time.Duration
	reload   ReloadFunc
	logger   *slog.Logger

	// lastSeen is the newest commit pulled; lastGood the newest one whose
	// rules loaded.
	lastSeen string
	lastGood string
}

// NewPoller creates a poller for repo. repo must have been synced.
func NewPoller(repo *Repository, interval time.Duration, reload ReloadFunc, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		repo:     repo,
		interval: interval,
		reload:   reload,
		logger:   logger.With("component", "rules.git"),
	}
}

// Run polls until ctx is cancelled. It blocks. Failed polls are logged and
// retried at the next tick.
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if err := p.init(); err != nil {
		return err
	}
	p.logger.Info("Rules repository poller started", "interval", p.interval, "commit", p.lastGood[:8])

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Rules repository poller stopped")
			return nil
		case <-ticker.C:
			if _, err := p.Check(ctx); err != nil {
				p.logger.Error("Rules repository poll failed", "error", err)
			}
		}
	}
}

func (p *Poller) init() error {
	if p.lastGood != "" {
		return nil
	}
	head, err := p.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get initial commit: %w", err)
	}
	p.lastSeen, p.lastGood = head.SHA, head.SHA
	return nil
}

// Check pulls once and reloads if the rule file changed. It reports whether
// the rules were reloaded. When the reload fails the working tree is rolled
// back to the last good commit and the error returned; the failing commit is
// not retried.
func (p *Poller) Check(ctx context.Context) (bool, error) {
	if err := p.init(); err != nil {
		return false, err
	}

	result, err := p.repo.Pull(ctx)
	if err != nil {
		p.restore()
		return false, err
	}
	if result.To == p.lastSeen {
		p.restore()
		return false, nil
	}
	p.lastSeen = result.To

	changed, err := p.repo.RulesChanged(p.lastGood, result.To)
	if err != nil {
		p.restore()
		return false, err
	}
	if !changed {
		p.logger.Debug("Rules file unchanged, skipping reload", "commit", result.To[:8])
		p.lastGood = result.To
		return false, nil
	}

	head, err := p.repo.Head()
	if err != nil {
		p.restore()
		return false, err
	}
	p.logger.Info("Rules file changed", "from", p.lastGood[:8], "to", head.Short(), "author", head.Author)
	if err := p.reload(ctx, head); err != nil {
		p.logger.Error("Rules from new commit failed to load, rolling back",
			"commit", head.Short(),
			"rollback_to", p.lastGood[:8],
			"error", err,
		)
		p.restore()
		return false, fmt.Errorf("rules at %s failed to load: %w", head.Short(), err)
	}
	p.lastGood = head.SHA
	return true, nil
}

// restore puts the working tree back on the last good commit when the branch
// has moved past it.
func (p *Poller) restore() {
	head, err := p.repo.Head()
	if err == nil && head.SHA == p.lastGood {
		return
	}
	if err := p.repo.Checkout(p.lastGood); err != nil {
		p.logger.Error("Rollback failed", "target", p.lastGood[:8], "error", err)
	}
}

// LastGood returns the SHA of the commit whose rules are active.
func (p *Poller) LastGood() string {
	return p.lastGood
}
