package audit

import (
	"fmt"
	"log/slog"

	"mercator-hq/gateway/pkg/config"
)

// Open creates the storage backend selected by cfg.Backend.
func Open(cfg *config.AuditConfig, logger *slog.Logger) (Storage, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStorage(), nil
	case "sqlite", "":
		return NewSQLiteStorage(&cfg.SQLite, logger)
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
	}
}
