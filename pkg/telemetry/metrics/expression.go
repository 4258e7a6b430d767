package metrics

import (
	"time"

	"mercator-hq/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ExpressionMetrics tracks expression compilation and evaluation.
//
// Metrics:
//   - mercator_gateway_expression_compilations_total: Compilations by result
//   - mercator_gateway_expression_compile_duration_seconds: Compile duration
//   - mercator_gateway_expression_evaluations_total: Evaluations by result and error kind
//   - mercator_gateway_expression_evaluation_duration_seconds: Evaluation duration
type ExpressionMetrics struct {
	compilationsTotal  *prometheus.CounterVec
	compileDuration    prometheus.Histogram
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
}

// NewExpressionMetrics creates and registers expression metrics with the
// provided registry.
func NewExpressionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ExpressionMetrics {
	em := &ExpressionMetrics{
		compilationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "expression_compilations_total",
				Help:      "Total number of expression compilations",
			},
			[]string{"result"},
		),

		compileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "expression_compile_duration_seconds",
				Help:      "Duration of expression parsing and optimization in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 12), // 10µs to 20ms
			},
		),

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "expression_evaluations_total",
				Help:      "Total number of expression evaluations",
			},
			[]string{"result", "error_kind"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "expression_evaluation_duration_seconds",
				Help:      "Duration of expression evaluation in seconds",
				Buckets:   cfg.EvalDurationBuckets,
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		em.compilationsTotal,
		em.compileDuration,
		em.evaluationsTotal,
		em.evaluationDuration,
	)

	return em
}

// RecordCompilation records one compilation.
func (em *ExpressionMetrics) RecordCompilation(result string, duration time.Duration) {
	em.compilationsTotal.WithLabelValues(result).Inc()
	em.compileDuration.Observe(duration.Seconds())
}

// RecordEvaluation records one evaluation. An empty errorKind means success.
func (em *ExpressionMetrics) RecordEvaluation(errorKind string, duration time.Duration) {
	result := "success"
	if errorKind != "" {
		result = "error"
	}
	em.evaluationsTotal.WithLabelValues(result, errorKind).Inc()
	em.evaluationDuration.WithLabelValues(result).Observe(duration.Seconds())
}
