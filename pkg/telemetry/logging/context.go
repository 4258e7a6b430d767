package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// EvaluationIDKey is the context key for evaluation IDs.
	EvaluationIDKey contextKey = "evaluation_id"

	// RuleSetKey is the context key for the active rule set generation.
	RuleSetKey contextKey = "rule_set"

	// RuleKey is the context key for the rule being evaluated.
	RuleKey contextKey = "rule"

	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// TraceIDKey is the context key for trace IDs.
	TraceIDKey contextKey = "trace_id"
)

// contextKeys lists the keys copied onto every record, in output order.
var contextKeys = []contextKey{RequestIDKey, EvaluationIDKey, RuleSetKey, RuleKey, TraceIDKey}

// WithEvaluationID adds an evaluation ID to the context.
func WithEvaluationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, EvaluationIDKey, id)
}

// GetEvaluationID retrieves the evaluation ID from the context.
func GetEvaluationID(ctx context.Context) string {
	return getString(ctx, EvaluationIDKey)
}

// WithRuleSet adds a rule set generation to the context.
func WithRuleSet(ctx context.Context, generation string) context.Context {
	return context.WithValue(ctx, RuleSetKey, generation)
}

// GetRuleSet retrieves the rule set generation from the context.
func GetRuleSet(ctx context.Context) string {
	return getString(ctx, RuleSetKey)
}

// WithRule adds a rule name to the context.
func WithRule(ctx context.Context, rule string) context.Context {
	return context.WithValue(ctx, RuleKey, rule)
}

// GetRule retrieves the rule name from the context.
func GetRule(ctx context.Context) string {
	return getString(ctx, RuleKey)
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	return getString(ctx, TraceIDKey)
}

func getString(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// extractContextFields returns the context fields present in ctx.
func extractContextFields(ctx context.Context) []slog.Attr {
	var fields []slog.Attr
	for _, key := range contextKeys {
		if v := getString(ctx, key); v != "" {
			fields = append(fields, slog.String(string(key), v))
		}
	}
	return fields
}

// ContextHandler is a slog.Handler that adds the context fields to records
// logged through the *Context methods.
type ContextHandler struct {
	next slog.Handler
}

// NewContextHandler wraps next.
func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *ContextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if fields := extractContextFields(ctx); len(fields) > 0 {
		rec = rec.Clone()
		rec.AddAttrs(fields...)
	}
	return h.next.Handle(ctx, rec)
}

// WithAttrs implements slog.Handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}
