package logging

import (
	"context"
	"io"
	"testing"

	"mercator-hq/gateway/pkg/config"
)


func BenchmarkLogger_Info(b *testing.B) {
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json", RedactPII: boolPtr(false)}, io.Discard)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("Rule evaluated", "rule", "deny-large", "count", i)
	}
}

func BenchmarkLogger_Debug_Disabled(b *testing.B) {
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, io.Discard)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Debug("Rule evaluated", "rule", "deny-large", "count", i)
	}
}

func BenchmarkLogger_WithRedaction(b *testing.B) {
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, io.Discard)
	if err != nil {
		b.Fatal(err)
	}
	ctx := WithEvaluationID(context.Background(), "eval-1")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.InfoContext(ctx, "Rule denied request", "source", `request.headers["authorization"] == "Bearer abc"`, "client", "10.0.0.1")
	}
}

func BenchmarkRedactor_RedactString(b *testing.B) {
	r, err := NewRedactor(nil)
	if err != nil {
		b.Fatal(err)
	}
	input := "user alice@example.com from 192.168.1.1 with key sk-abcdef0123456789"
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.RedactString(input)
	}
}
