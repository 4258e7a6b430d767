package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/gateway/pkg/config"
)

func mustRedactor(t testing.TB, custom []config.RedactPattern) *Redactor {
	t.Helper()
	r, err := NewRedactor(custom)
	if err != nil {
		t.Fatalf("NewRedactor() error = %v", err)
	}
	return r
}

func TestNewRedactor(t *testing.T) {
	tests := []struct {
		name         string
		custom       []config.RedactPattern
		wantPatterns int
		wantErr      bool
	}{
		{
			name:         "default patterns only",
			wantPatterns: len(defaultPatterns),
		},
		{
			name: "with custom pattern",
			custom: []config.RedactPattern{
				{Name: "tenant", Pattern: `tenant-[0-9]+`, Replacement: "tenant-***"},
			},
			wantPatterns: len(defaultPatterns) + 1,
		},
		{
			name:    "invalid custom pattern",
			custom:  []config.RedactPattern{{Name: "bad", Pattern: "[unclosed"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRedactor(tt.custom)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewRedactor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(r.patterns) != tt.wantPatterns {
				t.Errorf("expected %d patterns, got %d", tt.wantPatterns, len(r.patterns))
			}
		})
	}
}

func TestRedactor_RedactString(t *testing.T) {
	r := mustRedactor(t, []config.RedactPattern{
		{Name: "tenant", Pattern: `tenant-[0-9]+`},
	})

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"clean", "model == 'gpt-4'", "model == 'gpt-4'"},
		{"api key", "key sk-proj-abc123", "key sk-***"},
		{"bearer", "Authorization: Bearer abc.def.ghi", "Authorization: Bearer ***"},
		{"password", "password=hunter2 ok", "password: *** ok"},
		{"email", "from alice@example.com", "from ***@example.com"},
		{"ssn", "ssn 123-45-6789", "ssn ***-**-****"},
		{"credit card", "card 4111-1111-1111-1111", "card ****-****-****-****"},
		{"phone", "call 555-123-4567", "call ***-***-****"},
		{"ipv4", "client 192.168.1.100", "client 192.*.*.*"},
		{"custom", "owner tenant-42", "owner ***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.RedactString(tt.input); got != tt.want {
				t.Errorf("RedactString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRedactor_RedactAttr(t *testing.T) {
	r := mustRedactor(t, nil)

	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"sensitive key long", slog.String("Authorization", "Bearer abcdefgh"), "Bear***"},
		{"sensitive key short", slog.String("token", "abc"), "***"},
		{"sensitive key non-string", slog.Int("api_key", 12345), "***"},
		{"string value", slog.String("note", "mail bob@example.org"), "mail ***@example.org"},
		{"error value", slog.Any("error", errors.New("bad key sk-live123")), "bad key sk-***"},
		{"plain int", slog.Int("count", 3), "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.RedactAttr(tt.attr)
			if got.Key != tt.attr.Key {
				t.Errorf("key changed: %q", got.Key)
			}
			if got.Value.String() != tt.want {
				t.Errorf("RedactAttr() = %q, want %q", got.Value.String(), tt.want)
			}
		})
	}
}

func TestRedactor_RedactAttr_Group(t *testing.T) {
	r := mustRedactor(t, nil)

	got := r.RedactAttr(slog.Group("request",
		slog.String("client", "10.1.2.3"),
		slog.String("password", "correct-horse"),
	))

	attrs := got.Value.Group()
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Value.String() != "10.*.*.*" {
		t.Errorf("client = %q", attrs[0].Value.String())
	}
	if attrs[1].Value.String() != "corr***" {
		t.Errorf("password = %q", attrs[1].Value.String())
	}
}

func TestRedactingHandler_WithAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	h := NewRedactingHandler(slog.NewTextHandler(buf, nil), mustRedactor(t, nil))
	logger := slog.New(h).With("client_secret", "s3cr3t-value").WithGroup("g")

	logger.InfoContext(context.Background(), "evaluated", "ip", "172.16.0.9")

	out := buf.String()
	if strings.Contains(out, "s3cr3t-value") {
		t.Errorf("WithAttrs value not redacted: %s", out)
	}
	if !strings.Contains(out, "g.ip=172.*.*.*") {
		t.Errorf("grouped attribute not redacted: %s", out)
	}
}
