package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Values accepted by telemetry.tracing.sampler.
const (
	SamplerAlways = "always"
	SamplerNever  = "never"
	SamplerRatio  = "ratio"
)

// createSampler picks the root sampler for decision spans. Authorization
// subrequests usually arrive with the proxy's traceparent, so the root
// sampler only decides for requests the proxy did not trace; everything
// else inherits the proxy's sampled flag through ParentBased.
func createSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	root, err := rootSampler(strategy, ratio)
	if err != nil {
		return nil, err
	}
	return sdktrace.ParentBased(root), nil
}

func rootSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	switch strategy {
	case SamplerAlways:
		return sdktrace.AlwaysSample(), nil
	case SamplerNever:
		return sdktrace.NeverSample(), nil
	case SamplerRatio, "":
		if ratio < 0 || ratio > 1 {
			return nil, fmt.Errorf("sample_ratio %g outside [0, 1]", ratio)
		}
		return sdktrace.TraceIDRatioBased(ratio), nil
	}
	return nil, fmt.Errorf("unknown sampler %q, want %s, %s or %s", strategy, SamplerAlways, SamplerNever, SamplerRatio)
}
