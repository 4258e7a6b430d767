package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/gateway/pkg/config"
)

// Supported database/sql driver names.
const (
	DriverPureGo = "sqlite"  // modernc.org/sqlite
	DriverCgo    = "sqlite3" // github.com/mattn/go-sqlite3
)

// SQLiteStorage implements Storage on a SQLite database.
type SQLiteStorage struct {
	db     *sql.DB
	cfg    config.SQLiteConfig
	insert *sql.Stmt
	logger *slog.Logger
}

// NewSQLiteStorage opens the database at cfg.Path, creating the file and
// schema if needed. The driver is chosen by cfg.Driver.
func NewSQLiteStorage(cfg *config.SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if cfg == nil {
		cfg = &config.Default().Audit.SQLite
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audit.sqlite")

	dsn, err := sqliteDSN(cfg)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, NewStorageError("sqlite", "open", err)
		}
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	s := &SQLiteStorage{db: db, cfg: *cfg, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite decision log opened",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", cfg.WALEnabled(),
		"max_open_conns", cfg.MaxOpenConns,
	)
	return s, nil
}

// sqliteDSN builds a data source name that applies the connection pragmas
// to every pooled connection. The two drivers spell them differently.
func sqliteDSN(cfg *config.SQLiteConfig) (string, error) {
	if cfg.Path == "" {
		return "", fmt.Errorf("database path cannot be empty")
	}
	busy := cfg.BusyTimeout.Milliseconds()

	var params []string
	switch cfg.Driver {
	case DriverPureGo:
		params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", busy))
		if cfg.WALEnabled() {
			params = append(params, "_pragma=journal_mode(WAL)")
		}
	case DriverCgo:
		params = append(params, fmt.Sprintf("_busy_timeout=%d", busy))
		if cfg.WALEnabled() {
			params = append(params, "_journal_mode=WAL")
		}
	default:
		return "", fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	return cfg.Path + "?" + strings.Join(params, "&"), nil
}

// initialize creates the schema and checks its version.
func (s *SQLiteStorage) initialize() error {
	if err := s.db.Ping(); err != nil {
		return NewStorageError("sqlite", "open", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	stmt, err := s.db.Prepare(`INSERT INTO decisions (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return NewStorageError("sqlite", "prepare", err)
	}
	s.insert = stmt

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Store inserts record.
func (s *SQLiteStorage) Store(ctx context.Context, record *Record) error {
	var errs string
	if len(record.Errors) > 0 {
		b, err := json.Marshal(record.Errors)
		if err != nil {
			return NewStorageError("sqlite", "store", err)
		}
		errs = string(b)
	}

	_, err := s.insert.ExecContext(ctx,
		record.ID, record.RequestID, record.Time.UnixNano(), int64(record.Duration),
		record.Generation, record.Decision, record.Rule, record.Reason, record.Backend, errs,
		record.Method, record.Host, record.Path, record.SourceAddress,
		record.Provider, record.Model, record.InputTokens,
	)
	if err != nil {
		return NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query returns the records matching query.
func (s *SQLiteStorage) Query(ctx context.Context, query *Query) ([]*Record, error) {
	where, args := buildWhereClause(query)

	q := "SELECT " + recordColumns + " FROM decisions" + where
	if query.order() == OrderOldest {
		q += " ORDER BY time_unix_nano ASC, rowid ASC"
	} else {
		q += " ORDER BY time_unix_nano DESC, rowid DESC"
	}
	q += " LIMIT ? OFFSET ?"
	args = append(args, query.limit(), query.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	return records, nil
}

// Count returns the number of records matching query.
func (s *SQLiteStorage) Count(ctx context.Context, query *Query) (int64, error) {
	where, args := buildWhereClause(query)

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decisions"+where, args...).Scan(&n); err != nil {
		return 0, NewStorageError("sqlite", "count", err)
	}
	return n, nil
}

// DeleteBefore removes records older than cutoff.
func (s *SQLiteStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM decisions WHERE time_unix_nano < ?", cutoff.UnixNano())
	if err != nil {
		return 0, NewStorageError("sqlite", "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "delete", err)
	}
	return n, nil
}

// DeleteOldest removes the n oldest records.
func (s *SQLiteStorage) DeleteOldest(ctx context.Context, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM decisions WHERE id IN (
		SELECT id FROM decisions ORDER BY time_unix_nano ASC, rowid ASC LIMIT ?)`, n)
	if err != nil {
		return 0, NewStorageError("sqlite", "delete", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "delete", err)
	}
	return deleted, nil
}

// Close releases the database.
func (s *SQLiteStorage) Close() error {
	if s.insert != nil {
		s.insert.Close()
	}
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite decision log closed")
	return nil
}

// buildWhereClause builds a WHERE clause, including the keyword, and its
// arguments from the query filters.
func buildWhereClause(q *Query) (string, []any) {
	var conds []string
	var args []any

	if q.Since != nil {
		conds = append(conds, "time_unix_nano >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if q.Until != nil {
		conds = append(conds, "time_unix_nano < ?")
		args = append(args, q.Until.UnixNano())
	}
	if q.Decision != "" {
		conds = append(conds, "decision = ?")
		args = append(args, q.Decision)
	}
	if q.Rule != "" {
		conds = append(conds, "rule = ?")
		args = append(args, q.Rule)
	}
	if q.Generation != "" {
		conds = append(conds, "generation = ?")
		args = append(args, q.Generation)
	}
	if q.RequestID != "" {
		conds = append(conds, "request_id = ?")
		args = append(args, q.RequestID)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRecord(rows *sql.Rows) (*Record, error) {
	var r Record
	var unixNano, duration int64
	var errs string

	err := rows.Scan(
		&r.ID, &r.RequestID, &unixNano, &duration,
		&r.Generation, &r.Decision, &r.Rule, &r.Reason, &r.Backend, &errs,
		&r.Method, &r.Host, &r.Path, &r.SourceAddress,
		&r.Provider, &r.Model, &r.InputTokens,
	)
	if err != nil {
		return nil, err
	}
	r.Time = time.Unix(0, unixNano)
	r.Duration = time.Duration(duration)
	if errs != "" {
		if err := json.Unmarshal([]byte(errs), &r.Errors); err != nil {
			return nil, fmt.Errorf("invalid errors column: %w", err)
		}
	}
	return &r, nil
}
