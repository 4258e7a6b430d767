package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Helper function to create test config
func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Namespace:           "test",
		Subsystem:           "gateway",
		EvalDurationBuckets: []float64{0.00001, 0.0001, 0.001},
		MaxCardinality:      100,
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)
	if collector == nil {
		t.Fatal("Expected non-nil collector")
	}
	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
	if !collector.enabled {
		t.Error("Collector should be enabled when Enabled is unset")
	}
}

func TestCollector_NewCollector_DefaultsDoNotMutateConfig(t *testing.T) {
	cfg := &config.MetricsConfig{}
	collector := NewCollector(cfg, nil)

	if collector.Registry() == nil {
		t.Fatal("Expected a registry to be created")
	}
	if cfg.Namespace != "" || cfg.EvalDurationBuckets != nil {
		t.Errorf("config was modified: %+v", cfg)
	}

	collector.RecordCompilation("success", time.Millisecond)
	count, err := testutil.GatherAndCount(collector.Registry(), "mercator_gateway_expression_compilations_total")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected default metric names, got %d series", count)
	}
}

func TestCollector_RecordCompilation(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordCompilation("success", time.Millisecond)
	collector.RecordCompilation("success", time.Millisecond)
	collector.RecordCompilation("error", time.Microsecond)

	em := collector.expressionMetrics
	if got := testutil.ToFloat64(em.compilationsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("expected 2 successful compilations, got %f", got)
	}
	if got := testutil.ToFloat64(em.compilationsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed compilation, got %f", got)
	}
}

func TestCollector_RecordEvaluation(t *testing.T) {
	tests := []struct {
		name      string
		errorKind string
		result    string
	}{
		{name: "success", errorKind: "", result: "success"},
		{name: "missing key", errorKind: "no_such_key", result: "error"},
		{name: "bad type", errorKind: "unexpected_type", result: "error"},
	}

	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	em := collector.expressionMetrics

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector.RecordEvaluation(tt.errorKind, 5*time.Microsecond)

			got := testutil.ToFloat64(em.evaluationsTotal.WithLabelValues(tt.result, tt.errorKind))
			if got != 1 {
				t.Errorf("expected 1 evaluation for %s/%s, got %f", tt.result, tt.errorKind, got)
			}
		})
	}

	count := testutil.CollectAndCount(em.evaluationDuration)
	if count != 2 {
		t.Errorf("expected duration series for success and error, got %d", count)
	}
}

func TestCollector_RecordRuleEvaluation(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	rm := collector.ruleMetrics

	collector.RecordRuleEvaluation("deny-large", "deny", time.Microsecond)
	collector.RecordRuleEvaluation("deny-large", "allow", time.Microsecond)
	collector.RecordRuleDecision("deny")

	if got := testutil.ToFloat64(rm.evaluationsTotal.WithLabelValues("deny-large", "deny")); got != 1 {
		t.Errorf("expected 1 deny evaluation, got %f", got)
	}
	if got := testutil.ToFloat64(rm.evaluationsTotal.WithLabelValues("deny-large", "allow")); got != 1 {
		t.Errorf("expected 1 allow evaluation, got %f", got)
	}
	if got := testutil.ToFloat64(rm.decisionsTotal.WithLabelValues("deny")); got != 1 {
		t.Errorf("expected 1 deny decision, got %f", got)
	}
}

func TestCollector_RecordRuleReload(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	rm := collector.ruleMetrics

	collector.RecordRuleReload("success", 5)
	collector.RecordRuleReload("error", 5)
	collector.RecordRuleReload("success", 3)

	if got := testutil.ToFloat64(rm.reloadsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("expected 2 successful reloads, got %f", got)
	}
	if got := testutil.ToFloat64(rm.rulesActive); got != 3 {
		t.Errorf("expected 3 active rules, got %f", got)
	}
}

func TestCollector_Audit(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	am := collector.auditMetrics

	collector.RecordAuditWrite("stored")
	collector.RecordAuditWrite("stored")
	collector.RecordAuditWrite("dropped")
	collector.RecordAuditPruned(7)
	collector.RecordAuditPruned(0)

	if got := testutil.ToFloat64(am.recordsTotal.WithLabelValues("stored")); got != 2 {
		t.Errorf("expected 2 stored records, got %f", got)
	}
	if got := testutil.ToFloat64(am.recordsTotal.WithLabelValues("dropped")); got != 1 {
		t.Errorf("expected 1 dropped record, got %f", got)
	}
	if got := testutil.ToFloat64(am.prunedTotal); got != 7 {
		t.Errorf("expected 7 pruned records, got %f", got)
	}
}

func TestCollector_CardinalityLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCardinality = 2
	collector := NewCollector(cfg, prometheus.NewRegistry())
	rm := collector.ruleMetrics

	collector.RecordRuleEvaluation("a", "allow", time.Microsecond)
	collector.RecordRuleEvaluation("b", "allow", time.Microsecond)
	collector.RecordRuleEvaluation("c", "allow", time.Microsecond)
	collector.RecordRuleEvaluation("a", "allow", time.Microsecond)

	if got := testutil.ToFloat64(rm.evaluationsTotal.WithLabelValues("a", "allow")); got != 2 {
		t.Errorf("expected known rule to keep its label, got %f", got)
	}
	if got := testutil.ToFloat64(rm.evaluationsTotal.WithLabelValues(OtherLabel, "allow")); got != 1 {
		t.Errorf("expected overflow rule under %q, got %f", OtherLabel, got)
	}
}

func TestCollector_Cache(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(testConfig(), registry)
	cm := collector.cacheMetrics

	collector.RecordCacheHit("program")
	collector.RecordCacheHit("program")
	collector.RecordCacheMiss("program")
	collector.RecordCacheEviction("program")
	collector.UpdateCacheSize("program", 42)

	if got := testutil.ToFloat64(cm.hitsTotal.WithLabelValues("program")); got != 2 {
		t.Errorf("expected 2 hits, got %f", got)
	}
	if got := testutil.ToFloat64(cm.missesTotal.WithLabelValues("program")); got != 1 {
		t.Errorf("expected 1 miss, got %f", got)
	}
	if got := testutil.ToFloat64(cm.evictionsTotal.WithLabelValues("program")); got != 1 {
		t.Errorf("expected 1 eviction, got %f", got)
	}
	if got := testutil.ToFloat64(cm.entries.WithLabelValues("program")); got != 42 {
		t.Errorf("expected size 42, got %f", got)
	}

	expected := `
# HELP test_gateway_cache_entries Number of entries in the cache
# TYPE test_gateway_cache_entries gauge
test_gateway_cache_entries{cache="program"} 42
# HELP test_gateway_cache_hits_total Total number of cache hits
# TYPE test_gateway_cache_hits_total counter
test_gateway_cache_hits_total{cache="program"} 2
`
	err := testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"test_gateway_cache_entries",
		"test_gateway_cache_hits_total",
	)
	if err != nil {
		t.Error(err)
	}
}

func TestCollector_Disabled(t *testing.T) {
	disabled := false
	cfg := testConfig()
	cfg.Enabled = &disabled
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordEvaluation("", time.Microsecond)
	collector.RecordCacheHit("program")

	if got := testutil.CollectAndCount(collector.expressionMetrics.evaluationsTotal); got != 0 {
		t.Errorf("disabled collector recorded %d evaluation series", got)
	}
	if got := testutil.CollectAndCount(collector.cacheMetrics.hitsTotal); got != 0 {
		t.Errorf("disabled collector recorded %d cache series", got)
	}
}

func TestCollector_Nil(t *testing.T) {
	var collector *Collector

	// Must not panic.
	collector.RecordCompilation("success", time.Millisecond)
	collector.RecordEvaluation("", time.Microsecond)
	collector.RecordRuleEvaluation("r", "allow", time.Microsecond)
	collector.RecordRuleDecision("allow")
	collector.RecordRuleReload("success", 1)
	collector.RecordCacheHit("program")
	collector.RecordCacheMiss("program")
	collector.RecordCacheEviction("program")
	collector.UpdateCacheSize("program", 1)
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("expected first two label sets to be allowed")
	}
	if !cl.Allow("a") {
		t.Error("expected existing label set to be allowed")
	}
	if cl.Allow("c") {
		t.Error("expected third label set to be rejected")
	}
	if cl.Count() != 2 {
		t.Errorf("expected cardinality 2, got %d", cl.Count())
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.RecordEvaluation("", time.Microsecond)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "test_gateway_expression_evaluations_total") {
		t.Errorf("metrics output missing evaluation counter:\n%s", body)
	}
	if !strings.Contains(string(body), "promhttp_metric_handler_requests_total") {
		t.Errorf("metrics output missing scrape counter:\n%s", body)
	}

	// A second handler on the same registry reuses the scrape counter.
	rec = httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Errorf("second handler status = %d", rec.Code)
	}
}
