package optimizer

import (
	"testing"

	"mercator-hq/gateway/pkg/cel/interpreter"
	"mercator-hq/gateway/pkg/cel/value"
)

func BenchmarkApply(b *testing.B) {
	expr := mustParse(b, "request.headers['x-team'] in ['search', 'billing'] && request.model.matches('^gpt-')")
	opt := Builtins()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Apply(expr, opt)
	}
}

func BenchmarkResolve_Optimized(b *testing.B) {
	benchmarkResolve(b, true)
}

func BenchmarkResolve_Unoptimized(b *testing.B) {
	benchmarkResolve(b, false)
}

func benchmarkResolve(b *testing.B, optimize bool) {
	expr := mustParse(b, "request.headers['x-team'] in ['search', 'billing'] && request.model.matches('^gpt-')")
	if optimize {
		expr = Apply(expr, Builtins())
	}
	vars := interpreter.MapResolver{
		"request": value.FromGo(map[string]any{
			"headers": map[string]string{"x-team": "search"},
			"model":   "gpt-4o",
		}),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := interpreter.Resolve(expr, nil, vars); err != nil {
			b.Fatal(err)
		}
	}
}
