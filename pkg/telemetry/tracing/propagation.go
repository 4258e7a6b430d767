package tracing

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Response headers carrying the decision's trace so the proxy in front of
// the gateway can forward them upstream alongside the verdict headers.
const (
	TraceIDHeader = "X-Trace-ID"
	SpanIDHeader  = "X-Span-ID"

	traceParentHeader = "Traceparent"
)

// ErrMalformedTraceParent is returned by ParseTraceParent for any header
// that does not follow version-traceid-spanid-flags.
var ErrMalformedTraceParent = errors.New("malformed traceparent")

// Extract returns ctx with the remote span context found in h, if any.
func Extract(ctx context.Context, h http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(h))
}

// Inject writes the span context of ctx into h.
func Inject(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

// ExtractFromMap is Extract for a snapshot's lower-cased header map.
func ExtractFromMap(ctx context.Context, carrier map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(carrier))
}

// InjectToMap is Inject for a plain string map.
func InjectToMap(ctx context.Context, carrier map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(carrier))
}

// HTTPMiddleware continues the trace the proxy forwarded with the
// authorization subrequest and reports its IDs back in TraceIDHeader and
// SpanIDHeader. When no propagator is installed, as with tracing disabled,
// the traceparent header is still decoded so the IDs are echoed for log
// correlation. A malformed traceparent is ignored.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := Extract(r.Context(), r.Header)
		if !trace.SpanContextFromContext(ctx).IsValid() {
			if tp := r.Header.Get(traceParentHeader); tp != "" {
				if sc, err := ParseTraceParent(tp); err == nil {
					ctx = trace.ContextWithRemoteSpanContext(ctx, sc)
				}
			}
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			w.Header().Set(TraceIDHeader, sc.TraceID().String())
			w.Header().Set(SpanIDHeader, sc.SpanID().String())
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ParseTraceParent decodes a W3C traceparent header into a remote span
// context. Only version 00 is accepted; all-zero trace or span IDs are
// rejected.
func ParseTraceParent(header string) (trace.SpanContext, error) {
	fields := strings.Split(header, "-")
	if len(fields) != 4 || fields[0] != "00" {
		return trace.SpanContext{}, ErrMalformedTraceParent
	}

	traceID, err := trace.TraceIDFromHex(fields[1])
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("%w: trace id: %v", ErrMalformedTraceParent, err)
	}
	spanID, err := trace.SpanIDFromHex(fields[2])
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("%w: span id: %v", ErrMalformedTraceParent, err)
	}
	flags, err := hex.DecodeString(fields[3])
	if err != nil || len(flags) != 1 {
		return trace.SpanContext{}, fmt.Errorf("%w: flags %q", ErrMalformedTraceParent, fields[3])
	}

	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.TraceFlags(flags[0]),
		Remote:     true,
	}), nil
}
