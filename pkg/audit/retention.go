package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/gateway/pkg/config"
	"mercator-hq/gateway/pkg/telemetry/metrics"
)

// Pruner enforces the retention policy on a Storage.
type Pruner struct {
	storage Storage
	cfg     config.RetentionConfig
	logger  *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewPruner creates a pruner for storage. c may be nil.
func NewPruner(storage Storage, cfg *config.RetentionConfig, logger *slog.Logger, c *metrics.Collector) *Pruner {
	if cfg == nil {
		cfg = &config.Default().Audit.Retention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		storage: storage,
		cfg:     *cfg,
		logger:  logger.With("component", "audit.retention"),
		metrics: c,
		now:     time.Now,
	}
}

// Prune deletes records older than the retention period, then the oldest
// records beyond MaxRecords. It returns the total number deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.cfg.Days > 0 {
		cutoff := p.now().AddDate(0, 0, -p.cfg.Days)
		n, err := p.storage.DeleteBefore(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += n
		p.logger.Debug("Pruned records by age", "deleted", n, "cutoff", cutoff)
	}

	if p.cfg.MaxRecords > 0 {
		count, err := p.storage.Count(ctx, &Query{})
		if err != nil {
			return total, fmt.Errorf("failed to count records: %w", err)
		}
		if excess := count - p.cfg.MaxRecords; excess > 0 {
			n, err := p.storage.DeleteOldest(ctx, excess)
			if err != nil {
				return total, fmt.Errorf("prune by count failed: %w", err)
			}
			total += n
			p.logger.Debug("Pruned records by count", "deleted", n, "max_records", p.cfg.MaxRecords)
		}
	}

	p.metrics.RecordAuditPruned(total)
	if total > 0 {
		p.logger.Info("Decision log pruned",
			"deleted", total,
			"retention_days", p.cfg.Days,
			"max_records", p.cfg.MaxRecords,
		)
	}
	return total, nil
}

// Run prunes on PruneSchedule until ctx is cancelled, then waits for a
// running prune to finish. An empty schedule runs nothing and returns when
// ctx is done.
func (p *Pruner) Run(ctx context.Context) error {
	if p.cfg.PruneSchedule == "" {
		<-ctx.Done()
		return nil
	}
	if _, err := cron.ParseStandard(p.cfg.PruneSchedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", p.cfg.PruneSchedule, err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(p.cfg.PruneSchedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("Scheduled pruning failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	c.Start()
	p.logger.Info("Retention scheduler started",
		"schedule", p.cfg.PruneSchedule,
		"next_run", c.Entries()[0].Next,
	)

	<-ctx.Done()
	<-c.Stop().Done()
	p.logger.Debug("Retention scheduler stopped")
	return nil
}
