package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document, applies defaults and validates the result.
// Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention MERCATOR_SECTION_FIELD (e.g., MERCATOR_RULES_FILE_PATH).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
//
// An empty path skips the file and starts from the defaults.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg, os.Getenv)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format MERCATOR_SECTION_FIELD. Values that
// fail to parse are ignored.
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if val := getenv(key); val != "" {
			*dst = val
		}
	}
	integer := func(key string, dst *int) {
		if val := getenv(key); val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				*dst = i
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if val := getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				*dst = b
			}
		}
	}
	boolPtr := func(key string, dst **bool) {
		if val := getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				*dst = &b
			}
		}
	}
	duration := func(key string, dst *time.Duration) {
		if val := getenv(key); val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				*dst = d
			}
		}
	}

	// Expression overrides
	integer("MERCATOR_EXPRESSION_CACHE_SIZE", &cfg.Expression.CacheSize)
	integer("MERCATOR_EXPRESSION_MAX_DEPTH", &cfg.Expression.MaxDepth)
	boolean("MERCATOR_EXPRESSION_LENIENT", &cfg.Expression.Lenient)
	if val := getenv("MERCATOR_EXPRESSION_OPTIMIZATIONS"); val != "" {
		cfg.Expression.Optimizations = splitList(val)
	}

	// Rules overrides
	str("MERCATOR_RULES_FILE_PATH", &cfg.Rules.FilePath)
	boolean("MERCATOR_RULES_WATCH", &cfg.Rules.Watch)
	duration("MERCATOR_RULES_DEBOUNCE_INTERVAL", &cfg.Rules.DebounceInterval)
	str("MERCATOR_RULES_DEFAULT_ACTION", &cfg.Rules.DefaultAction)
	str("MERCATOR_RULES_GIT_REPOSITORY", &cfg.Rules.Git.Repository)
	str("MERCATOR_RULES_GIT_BRANCH", &cfg.Rules.Git.Branch)
	str("MERCATOR_RULES_GIT_AUTH_TOKEN", &cfg.Rules.Git.Auth.Token)
	duration("MERCATOR_RULES_GIT_POLL_INTERVAL", &cfg.Rules.Git.PollInterval)

	// Server overrides
	str("MERCATOR_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	duration("MERCATOR_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Audit overrides
	boolean("MERCATOR_AUDIT_ENABLED", &cfg.Audit.Enabled)
	str("MERCATOR_AUDIT_BACKEND", &cfg.Audit.Backend)
	str("MERCATOR_AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	integer("MERCATOR_AUDIT_RETENTION_DAYS", &cfg.Audit.Retention.Days)

	// Telemetry overrides
	str("MERCATOR_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	str("MERCATOR_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	boolPtr("MERCATOR_TELEMETRY_LOGGING_REDACT_PII", &cfg.Telemetry.Logging.RedactPII)
	boolPtr("MERCATOR_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	str("MERCATOR_TELEMETRY_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
	boolean("MERCATOR_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	str("MERCATOR_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	str("MERCATOR_TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	if val := getenv("MERCATOR_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
