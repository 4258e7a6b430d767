package metrics

import (
	"mercator-hq/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AuditMetrics tracks the decision log.
//
// Metrics:
//   - mercator_gateway_audit_records_total: Decision records by result ("stored", "dropped", "error")
//   - mercator_gateway_audit_pruned_total: Records removed by retention
type AuditMetrics struct {
	recordsTotal *prometheus.CounterVec
	prunedTotal  prometheus.Counter
}

// NewAuditMetrics creates and registers audit metrics with the provided registry.
func NewAuditMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_records_total",
				Help:      "Total number of decision records by write result",
			},
			[]string{"result"},
		),

		prunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_pruned_total",
				Help:      "Total number of decision records removed by retention",
			},
		),
	}

	registry.MustRegister(am.recordsTotal, am.prunedTotal)
	return am
}

// RecordWrite records the outcome of writing one decision record.
func (am *AuditMetrics) RecordWrite(result string) {
	am.recordsTotal.WithLabelValues(result).Inc()
}

// RecordPruned records n records removed by retention.
func (am *AuditMetrics) RecordPruned(n int64) {
	am.prunedTotal.Add(float64(n))
}
