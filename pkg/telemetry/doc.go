// Package telemetry groups the observability packages of the gateway.
//
// # Components
//
//   - logging: slog loggers with context fields and PII redaction
//   - metrics: Prometheus collectors for compilation, evaluation, rules,
//     the program cache and the decision log
//   - tracing: OpenTelemetry spans around compilation, evaluation and rule
//     decisions, with W3C trace context propagation
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stderr)
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	defer tracer.Shutdown(ctx)
//
//	engine, err := cel.NewEngine(&cfg.Expression, logger,
//		cel.WithMetrics(collector),
//		cel.WithTracer(tracer),
//	)
//
// A nil *metrics.Collector and a disabled tracer are valid and record
// nothing, so library callers can leave telemetry out.
//
// # PII Protection
//
// When logging.redact_pii is set (the default), values that look like API
// keys, bearer tokens, emails or card numbers are masked before a record is
// written:
//
//   - API keys: sk-abc123 → sk-***
//   - Emails: user@example.com → u***@example.com
//
// Custom redaction patterns can be configured.
package telemetry
