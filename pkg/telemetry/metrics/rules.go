package metrics

import (
	"time"

	"mercator-hq/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RuleMetrics tracks metrics related to rule evaluation.
//
// Metrics:
//   - mercator_gateway_rule_evaluations_total: Rule evaluations by rule and action
//   - mercator_gateway_rule_evaluation_duration_seconds: Rule evaluation duration
//   - mercator_gateway_rule_decisions_total: Final rule set decisions by action
//   - mercator_gateway_rule_reloads_total: Rule file reloads by result
//   - mercator_gateway_rules_active: Number of rules in the active set
type RuleMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	decisionsTotal     *prometheus.CounterVec
	reloadsTotal       *prometheus.CounterVec
	rulesActive        prometheus.Gauge
}

// NewRuleMetrics creates and registers rule metrics with the provided registry.
func NewRuleMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RuleMetrics {
	rm := &RuleMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_evaluations_total",
				Help:      "Total number of rule evaluations",
			},
			[]string{"rule", "action"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_evaluation_duration_seconds",
				Help:      "Duration of rule evaluation in seconds",
				Buckets:   cfg.EvalDurationBuckets,
			},
			[]string{"rule"},
		),

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_decisions_total",
				Help:      "Total number of rule set decisions",
			},
			[]string{"action"},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_reloads_total",
				Help:      "Total number of rule file reloads",
			},
			[]string{"result"},
		),

		rulesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rules_active",
				Help:      "Number of rules in the active rule set",
			},
		),
	}

	registry.MustRegister(
		rm.evaluationsTotal,
		rm.evaluationDuration,
		rm.decisionsTotal,
		rm.reloadsTotal,
		rm.rulesActive,
	)

	return rm
}

// RecordEvaluation records a rule evaluation.
//
// Example:
//
//	rm.RecordEvaluation("deny-large-prompts", "allow", 4*time.Microsecond)
func (rm *RuleMetrics) RecordEvaluation(rule, action string, duration time.Duration) {
	rm.evaluationsTotal.WithLabelValues(rule, action).Inc()
	rm.evaluationDuration.WithLabelValues(rule).Observe(duration.Seconds())
}

// RecordDecision records the decision of a full rule set.
func (rm *RuleMetrics) RecordDecision(action string) {
	rm.decisionsTotal.WithLabelValues(action).Inc()
}

// RecordReload records a reload attempt and the resulting rule count.
func (rm *RuleMetrics) RecordReload(result string, rules int) {
	rm.reloadsTotal.WithLabelValues(result).Inc()
	rm.rulesActive.Set(float64(rules))
}
