package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"mercator-hq/gateway/pkg/config"
)

func boolPtr(b bool) *bool { return &b }

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  config.LoggingConfig
		wantErr bool
	}{
		{
			name:   "valid JSON config",
			config: config.LoggingConfig{Level: "info", Format: "json"},
		},
		{
			name:   "valid text config",
			config: config.LoggingConfig{Level: "debug", Format: "text", RedactPII: boolPtr(false)},
		},
		{
			name:   "console is text",
			config: config.LoggingConfig{Level: "WARN", Format: "console"},
		},
		{
			name:    "invalid log level",
			config:  config.LoggingConfig{Level: "invalid", Format: "json"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			config:  config.LoggingConfig{Level: "info", Format: "invalid"},
			wantErr: true,
		},
		{
			name: "invalid redact pattern",
			config: config.LoggingConfig{
				Level:          "info",
				RedactPatterns: []config.RedactPattern{{Name: "bad", Pattern: "[unclosed"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestNew_Levels(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json"}, buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("filtered")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "filtered") {
		t.Errorf("info record should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestNew_TextFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(config.LoggingConfig{Level: "info", Format: "text"}, buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("Rule evaluated", "rule", "deny-large")

	out := buf.String()
	if !strings.Contains(out, `msg="Rule evaluated"`) || !strings.Contains(out, "rule=deny-large") {
		t.Errorf("unexpected text output: %s", out)
	}
}

func TestNew_RedactsByDefault(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("Request from alice@example.com", "source", `request.headers["x-key"] == "sk-abcdef123456"`)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if msg := rec["msg"].(string); msg != "Request from ***@example.com" {
		t.Errorf("message not redacted: %q", msg)
	}
	if src := rec["source"].(string); strings.Contains(src, "abcdef123456") {
		t.Errorf("attribute not redacted: %q", src)
	}
}

func TestNew_RedactionDisabled(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json", RedactPII: boolPtr(false)}, buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("Request", "email", "alice@example.com")
	if !strings.Contains(buf.String(), "alice@example.com") {
		t.Errorf("redaction should be disabled: %s", buf.String())
	}
}

func TestNew_ContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, buf)
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithEvaluationID(context.Background(), "eval-1")
	ctx = WithRuleSet(ctx, "gen-7")
	ctx = WithRule(ctx, "deny-large")
	logger.With("component", "rules").InfoContext(ctx, "Rule denied request")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	want := map[string]string{
		"evaluation_id": "eval-1",
		"rule_set":      "gen-7",
		"rule":          "deny-large",
		"component":     "rules",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("field %q = %v, want %q", k, rec[k], v)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"debug", "DEBUG", false},
		{"INFO", "INFO", false},
		{"", "INFO", false},
		{"warning", "WARN", false},
		{"error", "ERROR", false},
		{"trace", "INFO", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got.String() != tt.want {
				t.Errorf("parseLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}
