package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values for configuration fields.
const (
	// Expression defaults
	DefaultExpressionCacheSize = 1024
	DefaultExpressionMaxDepth  = 256

	// Rules defaults
	DefaultRulesFilePath      = "./rules.yaml"
	DefaultRulesDebounce      = 100 * time.Millisecond
	DefaultRulesDefaultAction = "allow"
	DefaultGitBranch          = "main"
	DefaultGitPath            = "rules.yaml"
	DefaultGitLocalDir        = "mercator-rules"
	DefaultGitPollInterval    = 30 * time.Second
	DefaultGitTimeout         = 30 * time.Second
	DefaultGitAuthType        = "none"

	// Server defaults
	DefaultServerListenAddress      = ":8080"
	DefaultServerReadTimeout        = 10 * time.Second
	DefaultServerWriteTimeout       = 10 * time.Second
	DefaultServerIdleTimeout        = 60 * time.Second
	DefaultServerShutdownTimeout    = 15 * time.Second
	DefaultServerMaxBodyBytes       = 1 << 20
	DefaultServerHealthCheckTimeout = 2 * time.Second
	DefaultTLSMinVersion            = "1.2"
	DefaultTLSReloadInterval        = 5 * time.Minute
	DefaultTLSClientAuth            = "require"
	DefaultSecretsEnvPrefix         = "MERCATOR_SECRET_"

	// Audit defaults
	DefaultAuditBackend       = "sqlite"
	DefaultAuditSQLitePath    = "data/decisions.db"
	DefaultAuditSQLiteDriver  = "sqlite"
	DefaultAuditMaxOpenConns  = 10
	DefaultAuditBusyTimeout   = 5 * time.Second
	DefaultAuditBufferSize    = 1000
	DefaultAuditWriteTimeout  = 5 * time.Second
	DefaultAuditRetentionDays = 30
	DefaultAuditPruneSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel          = "info"
	DefaultLoggingFormat         = "json"
	DefaultMetricsPath           = "/metrics"
	DefaultMetricsNamespace      = "mercator"
	DefaultMetricsSubsystem      = "gateway"
	DefaultMetricsMaxCardinality = 10000
	DefaultTracingSampler        = "ratio"
	DefaultTracingSampleRatio    = 0.1
	DefaultTracingServiceName    = "mercator-gateway"
	DefaultTracingTimeout        = 10 * time.Second
)

// Names of the built-in expression optimizations.
const (
	OptimizationHeader = "header"
	OptimizationRegex  = "regex"
	OptimizationIP     = "ip"
)

// DefaultOptimizations returns every built-in optimization.
func DefaultOptimizations() []string {
	return []string{OptimizationHeader, OptimizationRegex, OptimizationIP}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Expression defaults
	if cfg.Expression.CacheSize == 0 {
		cfg.Expression.CacheSize = DefaultExpressionCacheSize
	}
	if cfg.Expression.MaxDepth == 0 {
		cfg.Expression.MaxDepth = DefaultExpressionMaxDepth
	}
	if cfg.Expression.Optimizations == nil {
		cfg.Expression.Optimizations = DefaultOptimizations()
	}

	// Rules defaults
	if cfg.Rules.FilePath == "" {
		cfg.Rules.FilePath = DefaultRulesFilePath
	}
	if cfg.Rules.DebounceInterval == 0 {
		cfg.Rules.DebounceInterval = DefaultRulesDebounce
	}
	if cfg.Rules.DefaultAction == "" {
		cfg.Rules.DefaultAction = DefaultRulesDefaultAction
	}

	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}

	git := &cfg.Rules.Git
	if git.Branch == "" {
		git.Branch = DefaultGitBranch
	}
	if git.Path == "" {
		git.Path = DefaultGitPath
	}
	if git.LocalPath == "" {
		git.LocalPath = filepath.Join(os.TempDir(), DefaultGitLocalDir)
	}
	if git.PollInterval == 0 {
		git.PollInterval = DefaultGitPollInterval
	}
	if git.Timeout == 0 {
		git.Timeout = DefaultGitTimeout
	}
	if git.Auth.Type == "" {
		git.Auth.Type = DefaultGitAuthType
	}

	// Server defaults
	srv := &cfg.Server
	if srv.ListenAddress == "" {
		srv.ListenAddress = DefaultServerListenAddress
	}
	if srv.ReadTimeout == 0 {
		srv.ReadTimeout = DefaultServerReadTimeout
	}
	if srv.WriteTimeout == 0 {
		srv.WriteTimeout = DefaultServerWriteTimeout
	}
	if srv.IdleTimeout == 0 {
		srv.IdleTimeout = DefaultServerIdleTimeout
	}
	if srv.ShutdownTimeout == 0 {
		srv.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if srv.MaxBodyBytes == 0 {
		srv.MaxBodyBytes = DefaultServerMaxBodyBytes
	}
	if srv.HealthCheckTimeout == 0 {
		srv.HealthCheckTimeout = DefaultServerHealthCheckTimeout
	}
	if srv.TLS.MinVersion == "" {
		srv.TLS.MinVersion = DefaultTLSMinVersion
	}
	if srv.TLS.ReloadInterval == 0 {
		srv.TLS.ReloadInterval = DefaultTLSReloadInterval
	}
	if srv.TLS.ClientAuth == "" {
		srv.TLS.ClientAuth = DefaultTLSClientAuth
	}

	// Audit defaults
	audit := &cfg.Audit
	if audit.Backend == "" {
		audit.Backend = DefaultAuditBackend
	}
	if audit.SQLite.Path == "" {
		audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if audit.SQLite.Driver == "" {
		audit.SQLite.Driver = DefaultAuditSQLiteDriver
	}
	if audit.SQLite.MaxOpenConns == 0 {
		audit.SQLite.MaxOpenConns = DefaultAuditMaxOpenConns
	}
	if audit.SQLite.BusyTimeout == 0 {
		audit.SQLite.BusyTimeout = DefaultAuditBusyTimeout
	}
	if audit.BufferSize == 0 {
		audit.BufferSize = DefaultAuditBufferSize
	}
	if audit.WriteTimeout == 0 {
		audit.WriteTimeout = DefaultAuditWriteTimeout
	}
	if audit.Retention.Days == 0 {
		audit.Retention.Days = DefaultAuditRetentionDays
	}
	if audit.Retention.PruneSchedule == "" {
		audit.Retention.PruneSchedule = DefaultAuditPruneSchedule
	}

	// Logging defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}

	// Metrics defaults
	m := &cfg.Telemetry.Metrics
	if m.Path == "" {
		m.Path = DefaultMetricsPath
	}
	if m.Namespace == "" {
		m.Namespace = DefaultMetricsNamespace
	}
	if m.Subsystem == "" {
		m.Subsystem = DefaultMetricsSubsystem
	}
	if m.MaxCardinality == 0 {
		m.MaxCardinality = DefaultMetricsMaxCardinality
	}

	// Tracing defaults
	tr := &cfg.Telemetry.Tracing
	if tr.Sampler == "" {
		tr.Sampler = DefaultTracingSampler
	}
	if tr.SampleRatio == 0 && tr.Sampler == DefaultTracingSampler {
		tr.SampleRatio = DefaultTracingSampleRatio
	}
	if tr.ServiceName == "" {
		tr.ServiceName = DefaultTracingServiceName
	}
	if tr.Timeout == 0 {
		tr.Timeout = DefaultTracingTimeout
	}
}
