package config

import "time"

// Config is the root configuration structure for the Mercator gateway
// expression runtime. It covers expression compilation and evaluation, the
// policy rule file, and telemetry.
type Config struct {
	// Expression contains compilation and evaluation settings shared by every
	// expression the gateway runs.
	Expression ExpressionConfig `yaml:"expression"`

	// Rules contains the location and reload behavior of the policy rule file.
	Rules RulesConfig `yaml:"rules"`

	// Server contains the HTTP decision server settings used by "gateway serve".
	Server ServerConfig `yaml:"server"`

	// Audit contains the decision log settings.
	Audit AuditConfig `yaml:"audit"`

	// Secrets configures where ${secret:name} references are resolved.
	Secrets SecretsConfig `yaml:"secrets"`

	// Telemetry configures logs, Prometheus metrics and OTLP traces.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ExpressionConfig contains settings for the expression engine.
type ExpressionConfig struct {
	// CacheSize is the number of compiled programs kept in the LRU cache.
	// Default: 1024
	CacheSize int `yaml:"cache_size"`

	// MaxDepth bounds the evaluation recursion depth. 0 disables the limit.
	// Default: 256
	MaxDepth int `yaml:"max_depth"`

	// Lenient compiles malformed expressions into programs that always fail
	// instead of rejecting them, so one bad rule does not block startup.
	// Default: false
	Lenient bool `yaml:"lenient"`

	// Optimizations lists the built-in specializations to apply.
	// Options: "header", "regex", "ip"
	// Default: all of them
	Optimizations []string `yaml:"optimizations"`
}

// RulesConfig contains configuration for the policy rule file.
type RulesConfig struct {
	// FilePath is the path to the YAML rule file.
	// Default: "./rules.yaml"
	FilePath string `yaml:"file_path"`

	// Watch enables automatic reloading when the rule file changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval is the quiet period after a file change before the
	// rules are reloaded.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// DefaultAction is the decision when no authorization rule denies.
	// Options: "allow", "deny"
	// Default: "allow"
	DefaultAction string `yaml:"default_action"`

	// Git loads the rule file from a Git repository instead of FilePath.
	Git GitConfig `yaml:"git"`
}

// GitConfig configures a Git repository as the rule source. The repository
// is cloned locally and polled for new commits; FilePath is then set to the
// rule file inside the clone.
type GitConfig struct {
	// Repository URL (HTTPS, SSH or a local path). Empty disables Git mode.
	// Example: "https://github.com/company/gateway-rules.git"
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path of the rule file within the repository.
	// Default: "rules.yaml"
	Path string `yaml:"path"`

	// LocalPath is where the repository is cloned.
	// Default: "<temp dir>/mercator-rules"
	LocalPath string `yaml:"local_path"`

	// Depth limits the clone history; 0 fetches all of it.
	// Default: 0
	Depth int `yaml:"depth"`

	// CleanOnStart removes the local clone before cloning again.
	// Default: false
	CleanOnStart bool `yaml:"clean_on_start"`

	// PollInterval is the time between fetches. 0 loads the rules once.
	// Default: 30s
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each clone or pull.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Auth holds the credentials for private repositories.
	Auth GitAuthConfig `yaml:"auth"`
}

// Enabled reports whether rules come from Git.
func (c GitConfig) Enabled() bool {
	return c.Repository != ""
}

// GitAuthConfig selects how the rule repository is authenticated. Token
// and SSHKeyPassphrase may be ${secret:name} references.
type GitAuthConfig struct {
	// Type is "token", "ssh" or "none".
	// Default: "none"
	Type string `yaml:"type"`

	// Token for HTTPS authentication. Required when Type is "token".
	Token string `yaml:"token"`

	// SSHKeyPath for SSH authentication. Required when Type is "ssh".
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase for encrypted SSH keys.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// SecretsConfig configures secret resolution. Git credentials may be given
// as ${secret:name} references instead of literal values.
type SecretsConfig struct {
	// Dir holds one file per secret, as mounted from a Kubernetes secret.
	// Files are tried before the environment.
	Dir string `yaml:"dir"`

	// EnvPrefix is prepended to the upper-cased secret name to form the
	// environment variable, so "git-token" reads MERCATOR_SECRET_GIT_TOKEN.
	// Default: "MERCATOR_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`
}

// AuditConfig contains configuration for the decision log.
type AuditConfig struct {
	// Enabled controls whether decisions are recorded.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend specifies the storage backend.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite is used when Backend is "sqlite".
	SQLite SQLiteConfig `yaml:"sqlite"`

	// BufferSize is the size of the asynchronous write buffer. Records are
	// dropped, not blocked on, when it is full.
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// WriteTimeout bounds each storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Retention bounds how long decisions are kept.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig locates and tunes the decision database.
type SQLiteConfig struct {
	// Path of the database file; parent directories are created.
	// Default: "data/decisions.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// MaxOpenConns caps the database/sql pool.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode lets "audit list" read while the server writes.
	// Default: true
	WALMode *bool `yaml:"wal_mode"`

	// BusyTimeout is how long a write waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// WALEnabled reports whether WAL mode is enabled, defaulting to true.
func (c SQLiteConfig) WALEnabled() bool {
	return c.WALMode == nil || *c.WALMode
}

// RetentionConfig drives the decision log pruner.
type RetentionConfig struct {
	// Days is the number of days to retain decision records. A negative
	// value keeps them forever.
	// Default: 30
	Days int `yaml:"days"`

	// MaxRecords is the maximum number of records to keep. 0 means unlimited.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// PruneSchedule is the five-field cron spec the pruner runs on.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// ServerConfig contains settings for the HTTP decision server.
type ServerConfig struct {
	// ListenAddress is the address the server binds to.
	// Default: ":8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request, body included.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out a response write.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is how long keep-alive connections stay open between requests.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps the request body buffered for rules that read it.
	// Default: 1MiB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// HealthCheckTimeout bounds each readiness check.
	// Default: 2s
	HealthCheckTimeout time.Duration `yaml:"health_check_timeout"`

	// TLS serves the decision endpoint over HTTPS.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig contains TLS settings for the decision server. Certificates are
// reloaded from disk when they change, so renewals need no restart.
type TLSConfig struct {
	// Enabled turns on TLS.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the PEM-encoded certificate chain.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded private key.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the oldest protocol version offered to clients.
	// Options: "1.2", "1.3"
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`

	// ReloadInterval is how often the certificate files are checked for
	// changes.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`

	// ClientCAFile enables mutual TLS: client certificates are verified
	// against the CAs in this PEM file.
	ClientCAFile string `yaml:"client_ca_file"`

	// ClientAuth controls client certificates when ClientCAFile is set.
	// Options: "require", "verify_if_given"
	// Default: "require"
	ClientAuth string `yaml:"client_auth"`
}

// TelemetryConfig groups the observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`

	Metrics MetricsConfig `yaml:"metrics"`

	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures the slog logger.
type LoggingConfig struct {
	// Level is the lowest level written.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format selects the slog handler.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource adds the calling file and line to each record.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII enables redaction of API keys, tokens, emails and similar
	// values in log attributes.
	// Default: true
	RedactPII *bool `yaml:"redact_pii"`

	// RedactPatterns extend the built-in redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactEnabled reports whether PII redaction is on.
func (c LoggingConfig) RedactEnabled() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// RedactPattern masks one more kind of sensitive value in log attributes.
type RedactPattern struct {
	Name string `yaml:"name"`

	// Pattern is an RE2 expression.
	Pattern string `yaml:"pattern"`

	// Replacement defaults to "***".
	Replacement string `yaml:"replacement"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	// Enabled turns metric recording on or off.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path the scrape endpoint is served at.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// ListenAddress is where the metrics endpoint is served. Empty mounts it
	// on the decision server at Path.
	ListenAddress string `yaml:"listen_address"`

	// Namespace is the first metric name segment.
	// Default: "mercator"
	Namespace string `yaml:"namespace"`

	// Subsystem is the second metric name segment.
	// Default: "gateway"
	Subsystem string `yaml:"subsystem"`

	// EvalDurationBuckets defines histogram buckets for evaluation duration
	// in seconds.
	// Default: exponential from 1µs to 16ms
	EvalDurationBuckets []float64 `yaml:"eval_duration_buckets"`

	// MaxCardinality bounds the number of distinct rule label values.
	// Default: 10000
	MaxCardinality int `yaml:"max_cardinality"`
}

// IsEnabled reports whether metrics are collected.
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TracingConfig configures the OpenTelemetry tracer.
type TracingConfig struct {
	// Enabled exports spans to Endpoint.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler decides for traces the proxy did not start.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the sampled fraction when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service.name resource attribute.
	// Default: "mercator-gateway"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the collector connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export call.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
