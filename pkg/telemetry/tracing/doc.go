// Package tracing provides OpenTelemetry tracing for expression compilation,
// evaluation and rule set decisions.
//
// # Overview
//
// New builds a Tracer that exports spans over OTLP gRPC. When tracing is
// disabled, or when a component is handed a nil *Tracer, spans are noops and
// cost almost nothing.
//
// # Spans
//
//   - cel.compile: parsing and optimizing one expression
//   - cel.execute: one program execution, with cel.result.type or
//     cel.error.kind
//   - rules.evaluate: one rule set decision, with a child span per rule
//
// # Trace Context Propagation
//
// W3C Trace Context (https://www.w3.org/TR/trace-context/) is used to join
// the caller's trace. Rule evaluation extracts the traceparent header from
// the request snapshot it evaluates:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// # Sampling Strategies
//
//   - always: Sample all traces (development/debugging)
//   - never: Sample no traces
//   - ratio: Sample a percentage of traces (production)
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "cel.execute")
//	defer span.End()
package tracing
