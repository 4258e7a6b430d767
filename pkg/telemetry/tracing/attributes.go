package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys. Expression attributes use the "cel.*" namespace and
// rule attributes the "mercator.rule.*" namespace.
const (
	// Expression attributes
	AttrExpression    = "cel.expression"
	AttrEvaluationID  = "cel.evaluation_id"
	AttrCacheHit      = "cel.cache.hit"
	AttrOptimized     = "cel.optimized"
	AttrResultType    = "cel.result.type"
	AttrErrorKind     = "cel.error.kind"
	AttrPropertyCount = "cel.properties"

	// Rule attributes
	AttrRuleName     = "mercator.rule.name"
	AttrRuleAction   = "mercator.rule.action"
	AttrRuleSet      = "mercator.rule_set.generation"
	AttrRuleSetSize  = "mercator.rule_set.size"
	AttrRuleSetFile  = "mercator.rule_set.file"
	AttrRequestID    = "mercator.request_id"
	AttrErrorMessage = "error.message"
)

// maxExpressionLength bounds the expression source recorded on spans.
const maxExpressionLength = 256

// SetExpressionAttributes records the expression being evaluated. Long
// sources are truncated.
//
// Example:
//
//	SetExpressionAttributes(span, `request.model == "gpt-4"`, evalID)
func SetExpressionAttributes(span trace.Span, source, evaluationID string) {
	if len(source) > maxExpressionLength {
		source = source[:maxExpressionLength] + "..."
	}
	span.SetAttributes(
		attribute.String(AttrExpression, source),
		attribute.String(AttrEvaluationID, evaluationID),
	)
}

// SetResultAttributes records the type name of an evaluation result.
func SetResultAttributes(span trace.Span, typeName string) {
	span.SetAttributes(attribute.String(AttrResultType, typeName))
}

// SetErrorAttributes marks the span as failed with an error kind.
func SetErrorAttributes(span trace.Span, err error, kind string) {
	if err == nil {
		return
	}
	SetError(span, err)
	SetStatus(span, err)
	if kind != "" {
		span.SetAttributes(attribute.String(AttrErrorKind, kind))
	}
}

// SetRuleAttributes records the rule being evaluated and its outcome.
func SetRuleAttributes(span trace.Span, rule, action string) {
	span.SetAttributes(
		attribute.String(AttrRuleName, rule),
		attribute.String(AttrRuleAction, action),
	)
}

// SetRuleSetAttributes records which rule set generation was active.
func SetRuleSetAttributes(span trace.Span, generation string, size int) {
	span.SetAttributes(
		attribute.String(AttrRuleSet, generation),
		attribute.Int(AttrRuleSetSize, size),
	)
}

// AddEvent adds a custom event to the span.
//
// Example:
//
//	AddEvent(span, "rule_set.swapped", attribute.Int("rules", 12))
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
