package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// FieldError is one invalid setting. Field is the dotted YAML path, such
// as "rules.git.auth.token".
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationError carries every FieldError found in one configuration, so
// an operator fixes them in a single pass.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	const prefix = "configuration validation failed"
	switch len(e.Errors) {
	case 0:
		return prefix
	case 1:
		return prefix + ": " + e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s with %d errors:\n", prefix, len(e.Errors))
	for _, fe := range e.Errors {
		b.WriteString("  - " + fe.Error() + "\n")
	}
	return b.String()
}

// Validate checks cfg after defaults are applied and returns a
// ValidationError listing every problem, or nil.
func Validate(cfg *Config) error {
	v := &validator{}
	v.expression(&cfg.Expression)
	v.rules(&cfg.Rules)
	v.server(&cfg.Server)
	v.audit(&cfg.Audit)
	v.telemetry(&cfg.Telemetry)

	if len(v.errs) == 0 {
		return nil
	}
	return ValidationError{Errors: v.errs}
}

type validator struct {
	errs []FieldError
}

func (v *validator) fail(field, format string, args ...any) {
	v.errs = append(v.errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// require fails field unless ok holds.
func (v *validator) require(ok bool, field, format string, args ...any) {
	if !ok {
		v.fail(field, format, args...)
	}
}

func (v *validator) nonNegative(field string, n int64) {
	v.require(n >= 0, field, "%s must not be negative", strings.ReplaceAll(lastSegment(field), "_", " "))
}

// oneOf fails field when value is empty or not in allowed.
func (v *validator) oneOf(field, what, value string, allowed ...string) {
	switch {
	case value == "":
		v.fail(field, "%s is required", what)
	case !slices.Contains(allowed, value):
		v.fail(field, "invalid %s %q: must be %s", what, value, quoteList(allowed))
	}
}

func (v *validator) expression(cfg *ExpressionConfig) {
	v.nonNegative("expression.cache_size", int64(cfg.CacheSize))
	v.nonNegative("expression.max_depth", int64(cfg.MaxDepth))

	seen := make(map[string]bool, len(cfg.Optimizations))
	for i, name := range cfg.Optimizations {
		field := fmt.Sprintf("expression.optimizations[%d]", i)
		switch {
		case name != OptimizationHeader && name != OptimizationRegex && name != OptimizationIP:
			v.fail(field, "unknown optimization %q: must be 'header', 'regex', or 'ip'", name)
		case seen[name]:
			v.fail(field, "duplicate optimization %q", name)
		}
		seen[name] = true
	}
}

func (v *validator) rules(cfg *RulesConfig) {
	v.require(cfg.FilePath != "", "rules.file_path", "file path is required")
	v.require(cfg.DebounceInterval >= 0, "rules.debounce_interval", "debounce interval must be positive")
	v.require(cfg.DefaultAction == "allow" || cfg.DefaultAction == "deny", "rules.default_action",
		"invalid default action %q: must be 'allow' or 'deny'", cfg.DefaultAction)
	if cfg.Git.Enabled() {
		v.git(&cfg.Git)
	}
}

// git checks the repository rule source. Secret references in credentials
// are not expanded yet, so only their presence is checked.
func (v *validator) git(cfg *GitConfig) {
	v.require(cfg.Branch != "", "rules.git.branch", "branch is required")
	v.require(cfg.Path != "" && !filepath.IsAbs(cfg.Path), "rules.git.path", "path must be relative to the repository root")
	v.nonNegative("rules.git.depth", int64(cfg.Depth))
	v.require(cfg.PollInterval >= 0 && cfg.Timeout >= 0, "rules.git.poll_interval",
		"poll interval and timeout must not be negative")

	switch cfg.Auth.Type {
	case "none":
	case "token":
		v.require(cfg.Auth.Token != "", "rules.git.auth.token", "token is required for token authentication")
	case "ssh":
		v.require(cfg.Auth.SSHKeyPath != "", "rules.git.auth.ssh_key_path", "SSH key path is required for ssh authentication")
	default:
		v.fail("rules.git.auth.type", "invalid auth type %q: must be 'none', 'token', or 'ssh'", cfg.Auth.Type)
	}
}

// audit is skipped entirely while the decision log is disabled.
func (v *validator) audit(cfg *AuditConfig) {
	if !cfg.Enabled {
		return
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		v.require(cfg.SQLite.Path != "", "audit.sqlite.path", "database path is required")
		v.oneOf("audit.sqlite.driver", "driver", cfg.SQLite.Driver, "sqlite", "sqlite3")
		v.nonNegative("audit.sqlite.max_open_conns", int64(cfg.SQLite.MaxOpenConns))
	default:
		v.fail("audit.backend", "invalid backend %q: must be 'sqlite' or 'memory'", cfg.Backend)
	}

	v.nonNegative("audit.buffer_size", int64(cfg.BufferSize))
	v.nonNegative("audit.write_timeout", int64(cfg.WriteTimeout))
	v.nonNegative("audit.retention.max_records", cfg.Retention.MaxRecords)
}

func (v *validator) server(cfg *ServerConfig) {
	v.require(cfg.ListenAddress != "", "server.listen_address", "listen address is required")

	for _, t := range []struct {
		field string
		d     time.Duration
	}{
		{"server.read_timeout", cfg.ReadTimeout},
		{"server.write_timeout", cfg.WriteTimeout},
		{"server.idle_timeout", cfg.IdleTimeout},
		{"server.shutdown_timeout", cfg.ShutdownTimeout},
		{"server.health_check_timeout", cfg.HealthCheckTimeout},
	} {
		v.require(t.d >= 0, t.field, "timeout must not be negative")
	}
	v.nonNegative("server.max_body_bytes", cfg.MaxBodyBytes)

	if cfg.TLS.Enabled {
		v.tls(&cfg.TLS)
	}
}

// tls runs only when TLS is enabled; disabled TLS settings are ignored.
func (v *validator) tls(cfg *TLSConfig) {
	v.require(cfg.CertFile != "", "server.tls.cert_file", "cert_file is required when TLS is enabled")
	v.require(cfg.KeyFile != "", "server.tls.key_file", "key_file is required when TLS is enabled")
	v.oneOf("server.tls.min_version", "min version", cfg.MinVersion, "1.2", "1.3")
	v.require(cfg.ReloadInterval > 0, "server.tls.reload_interval", "reload interval must be positive")
	if cfg.ClientCAFile != "" {
		v.oneOf("server.tls.client_auth", "client auth", cfg.ClientAuth, "require", "verify_if_given")
	}
}

func (v *validator) telemetry(cfg *TelemetryConfig) {
	v.oneOf("telemetry.logging.level", "logging level", cfg.Logging.Level, "debug", "info", "warn", "error")
	v.oneOf("telemetry.logging.format", "logging format", cfg.Logging.Format, "json", "text")
	for i, p := range cfg.Logging.RedactPatterns {
		v.require(p.Name != "" && p.Pattern != "", fmt.Sprintf("telemetry.logging.redact_patterns[%d]", i),
			"name and pattern are required")
	}

	if cfg.Metrics.IsEnabled() {
		v.require(strings.HasPrefix(cfg.Metrics.Path, "/"), "telemetry.metrics.path", "metrics path must start with /")
		v.nonNegative("telemetry.metrics.max_cardinality", int64(cfg.Metrics.MaxCardinality))
	}

	t := &cfg.Tracing
	v.require(!t.Enabled || t.Endpoint != "", "telemetry.tracing.endpoint", "tracing endpoint is required when tracing is enabled")
	v.oneOf("telemetry.tracing.sampler", "sampler", t.Sampler, "always", "never", "ratio")
	v.require(t.SampleRatio >= 0 && t.SampleRatio <= 1, "telemetry.tracing.sample_ratio", "sample ratio must be between 0.0 and 1.0")
}

func lastSegment(field string) string {
	return field[strings.LastIndex(field, ".")+1:]
}

// quoteList renders allowed values as 'a', 'b', or 'c'.
func quoteList(allowed []string) string {
	quoted := make([]string, len(allowed))
	for i, a := range allowed {
		quoted[i] = "'" + a + "'"
	}
	switch len(quoted) {
	case 1:
		return quoted[0]
	case 2:
		return quoted[0] + " or " + quoted[1]
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + ", or " + quoted[len(quoted)-1]
}
