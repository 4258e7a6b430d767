package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
expression:
  cache_size: 64
  max_depth: 32
  lenient: true
  optimizations: [regex]

rules:
  file_path: "./policy/rules.yaml"
  watch: true
  debounce_interval: "250ms"
  default_action: deny

telemetry:
  logging:
    level: "debug"
    format: "text"
    redact_pii: false
  metrics:
    enabled: false
  tracing:
    enabled: true
    endpoint: "localhost:4317"
    sampler: always
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Expression.CacheSize != 64 || cfg.Expression.MaxDepth != 32 || !cfg.Expression.Lenient {
		t.Errorf("unexpected expression config: %+v", cfg.Expression)
	}
	if !reflect.DeepEqual(cfg.Expression.Optimizations, []string{"regex"}) {
		t.Errorf("expected optimizations [regex], got %v", cfg.Expression.Optimizations)
	}
	if cfg.Rules.DebounceInterval != 250*time.Millisecond {
		t.Errorf("expected debounce 250ms, got %v", cfg.Rules.DebounceInterval)
	}
	if cfg.Rules.DefaultAction != "deny" || !cfg.Rules.Watch {
		t.Errorf("unexpected rules config: %+v", cfg.Rules)
	}
	if cfg.Telemetry.Logging.RedactEnabled() {
		t.Error("expected redaction disabled")
	}
	if cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("expected metrics disabled")
	}
	if cfg.Telemetry.Tracing.Endpoint != "localhost:4317" {
		t.Errorf("expected tracing endpoint, got %q", cfg.Telemetry.Tracing.Endpoint)
	}
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("failed to load empty config: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("empty file should yield defaults, got %+v", cfg)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist in chain, got %v", err)
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "syntax", content: "expression: [unclosed"},
		{name: "unknown field", content: "expression:\n  cache_sise: 10\n"},
		{name: "wrong type", content: "expression:\n  cache_size: many\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected parse error")
			}
			if !strings.Contains(err.Error(), "failed to parse configuration") {
				t.Errorf("expected parse error, got %v", err)
			}
		})
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "rules:\n  default_action: maybe\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var validationErr ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("expected ValidationError in error chain, got %T: %v", err, err)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
rules:
  file_path: "./rules.yaml"
telemetry:
  logging:
    level: "info"
`)

	t.Setenv("MERCATOR_RULES_FILE_PATH", "/srv/rules.yaml")
	t.Setenv("MERCATOR_RULES_DEBOUNCE_INTERVAL", "2s")
	t.Setenv("MERCATOR_EXPRESSION_CACHE_SIZE", "12")
	t.Setenv("MERCATOR_EXPRESSION_LENIENT", "true")
	t.Setenv("MERCATOR_EXPRESSION_OPTIMIZATIONS", "header, ip")
	t.Setenv("MERCATOR_SERVER_LISTEN_ADDRESS", "127.0.0.1:9000")
	t.Setenv("MERCATOR_RULES_GIT_REPOSITORY", "https://example.com/rules.git")
	t.Setenv("MERCATOR_AUDIT_ENABLED", "true")
	t.Setenv("MERCATOR_AUDIT_BACKEND", "memory")
	t.Setenv("MERCATOR_TELEMETRY_LOGGING_LEVEL", "debug")
	t.Setenv("MERCATOR_TELEMETRY_METRICS_ENABLED", "false")
	t.Setenv("MERCATOR_TELEMETRY_TRACING_SAMPLE_RATIO", "0.5")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Rules.FilePath != "/srv/rules.yaml" {
		t.Errorf("expected file path from env, got %q", cfg.Rules.FilePath)
	}
	if cfg.Rules.DebounceInterval != 2*time.Second {
		t.Errorf("expected debounce from env, got %v", cfg.Rules.DebounceInterval)
	}
	if cfg.Expression.CacheSize != 12 || !cfg.Expression.Lenient {
		t.Errorf("expression overrides not applied: %+v", cfg.Expression)
	}
	if !reflect.DeepEqual(cfg.Expression.Optimizations, []string{"header", "ip"}) {
		t.Errorf("expected optimizations [header ip], got %v", cfg.Expression.Optimizations)
	}
	if cfg.Server.ListenAddress != "127.0.0.1:9000" {
		t.Errorf("expected listen address from env, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Rules.Git.Repository != "https://example.com/rules.git" {
		t.Errorf("expected git repository from env, got %q", cfg.Rules.Git.Repository)
	}
	if !cfg.Audit.Enabled || cfg.Audit.Backend != "memory" {
		t.Errorf("audit overrides not applied: %+v", cfg.Audit)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level from env, got %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("expected metrics disabled from env")
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.5 {
		t.Errorf("expected sample ratio from env, got %v", cfg.Telemetry.Tracing.SampleRatio)
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("MERCATOR_RULES_DEFAULT_ACTION", "deny")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Rules.DefaultAction != "deny" {
		t.Errorf("expected default action from env, got %q", cfg.Rules.DefaultAction)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidEnvValues(t *testing.T) {
	t.Setenv("MERCATOR_EXPRESSION_CACHE_SIZE", "lots")
	t.Setenv("MERCATOR_RULES_WATCH", "sometimes")
	t.Setenv("MERCATOR_RULES_DEBOUNCE_INTERVAL", "soon")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Expression.CacheSize != DefaultExpressionCacheSize {
		t.Errorf("invalid integer should be ignored, got %d", cfg.Expression.CacheSize)
	}
	if cfg.Rules.Watch {
		t.Error("invalid boolean should be ignored")
	}
	if cfg.Rules.DebounceInterval != DefaultRulesDebounce {
		t.Errorf("invalid duration should be ignored, got %v", cfg.Rules.DebounceInterval)
	}
}

func TestLoadConfigWithEnvOverrides_RevalidatesOverrides(t *testing.T) {
	t.Setenv("MERCATOR_TELEMETRY_LOGGING_LEVEL", "verbose")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil {
		t.Fatal("expected validation error after override")
	}
	if !strings.Contains(err.Error(), "after environment overrides") {
		t.Errorf("unexpected error: %v", err)
	}
}
