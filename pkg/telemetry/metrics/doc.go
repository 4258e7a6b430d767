// Package metrics provides Prometheus metrics for the gateway's expression
// engine and rule evaluation.
//
// # Metrics Categories
//
//   - Expression Metrics: compilations and evaluations, with durations and
//     the error kind of failed evaluations
//   - Rule Metrics: per-rule evaluations, rule set decisions and reloads
//   - Cache Metrics: program cache hits, misses, evictions and size
//   - Audit Metrics: decision records stored, dropped or failed, and
//     records removed by retention
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordEvaluation("", 3*time.Microsecond)
//	http.Handle("/metrics", collector.Handler())
//
// A nil *Collector records nothing, and a disabled one registers its metrics
// but never updates them.
//
// # Cardinality
//
// Rule names are user supplied. Once MaxCardinality distinct rules have been
// seen, further rules are reported under the "other" label.
package metrics
