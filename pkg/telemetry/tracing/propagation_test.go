package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const validTraceParent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func TestParseTraceParent(t *testing.T) {
	tests := []struct {
		name        string
		traceparent string
		wantErr     bool
		wantSampled bool
	}{
		{name: "sampled", traceparent: validTraceParent, wantSampled: true},
		{name: "not sampled", traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-00"},
		{name: "sampled with extra flag bits", traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-03", wantSampled: true},
		{name: "empty", traceparent: "", wantErr: true},
		{name: "unknown version", traceparent: "01-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", wantErr: true},
		{name: "too few fields", traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-01", wantErr: true},
		{name: "short trace id", traceparent: "00-4bf92f35-00f067aa0ba902b7-01", wantErr: true},
		{name: "non-hex trace id", traceparent: "00-4bf92f3577b34da6a3ce929d0e0e473z-00f067aa0ba902b7-01", wantErr: true},
		{name: "zero trace id", traceparent: "00-00000000000000000000000000000000-00f067aa0ba902b7-01", wantErr: true},
		{name: "zero span id", traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-0000000000000000-01", wantErr: true},
		{name: "long flags", traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-0101", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := ParseTraceParent(tt.traceparent)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedTraceParent) {
					t.Fatalf("ParseTraceParent(%q) error = %v, want ErrMalformedTraceParent", tt.traceparent, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTraceParent(%q) error = %v", tt.traceparent, err)
			}
			if got := sc.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
				t.Errorf("TraceID = %s", got)
			}
			if got := sc.SpanID().String(); got != "00f067aa0ba902b7" {
				t.Errorf("SpanID = %s", got)
			}
			if sc.IsSampled() != tt.wantSampled {
				t.Errorf("IsSampled() = %v, want %v", sc.IsSampled(), tt.wantSampled)
			}
			if !sc.IsRemote() {
				t.Error("expected remote span context")
			}
		})
	}
}

func withPropagator(t *testing.T) {
	t.Helper()
	otel.SetTextMapPropagator(propagation.TraceContext{})
}

func TestExtractFromMap(t *testing.T) {
	withPropagator(t)

	ctx := ExtractFromMap(context.Background(), map[string]string{"traceparent": validTraceParent})
	if got := TraceID(ctx); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("TraceID() = %q", got)
	}

	carrier := map[string]string{}
	InjectToMap(ctx, carrier)
	if carrier["traceparent"] != validTraceParent {
		t.Errorf("InjectToMap() traceparent = %q", carrier["traceparent"])
	}
}

func TestExtractAndInject(t *testing.T) {
	withPropagator(t)

	in := http.Header{}
	in.Set("Traceparent", validTraceParent)
	ctx := Extract(context.Background(), in)

	out := http.Header{}
	Inject(ctx, out)
	if out.Get("Traceparent") != validTraceParent {
		t.Errorf("Inject() traceparent = %q", out.Get("Traceparent"))
	}
}

func TestHTTPMiddleware(t *testing.T) {
	withPropagator(t)

	var seen string
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.Header.Set("traceparent", validTraceParent)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("handler saw trace ID %q", seen)
	}
	if rec.Header().Get(TraceIDHeader) != seen {
		t.Errorf("%s = %q", TraceIDHeader, rec.Header().Get(TraceIDHeader))
	}
}

func TestHTTPMiddleware_WithoutPropagator(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator())
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	tests := []struct {
		name        string
		traceparent string
		want        string
	}{
		{name: "valid", traceparent: validTraceParent, want: "4bf92f3577b34da6a3ce929d0e0e4736"},
		{name: "malformed", traceparent: "00-zz-00f067aa0ba902b7-01"},
		{name: "absent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = TraceID(r.Context())
			}))

			req := httptest.NewRequest("GET", "/authorize", nil)
			if tt.traceparent != "" {
				req.Header.Set("traceparent", tt.traceparent)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if seen != tt.want {
				t.Errorf("handler saw trace ID %q, want %q", seen, tt.want)
			}
			if got := rec.Header().Get(TraceIDHeader); got != tt.want {
				t.Errorf("%s = %q, want %q", TraceIDHeader, got, tt.want)
			}
		})
	}
}
