package metrics

import (
	"sync"
	"time"

	"mercator-hq/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// OtherLabel replaces a label value once the cardinality limit is reached.
const OtherLabel = "other"

// Collector owns every Prometheus metric exported by the gateway's
// expression layer. A nil *Collector is valid and records nothing, so
// components can take one optionally.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	expressionMetrics *ExpressionMetrics
	ruleMetrics       *RuleMetrics
	cacheMetrics      *CacheMetrics
	auditMetrics      *AuditMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector registering its metrics with registry.
// If registry is nil, a new registry is created. Empty namespace, subsystem
// and cardinality settings fall back to the configuration defaults; cfg
// itself is not modified.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	opts := *cfg
	if opts.Namespace == "" {
		opts.Namespace = config.DefaultMetricsNamespace
	}
	if opts.Subsystem == "" {
		opts.Subsystem = config.DefaultMetricsSubsystem
	}
	if opts.MaxCardinality == 0 {
		opts.MaxCardinality = config.DefaultMetricsMaxCardinality
	}
	if len(opts.EvalDurationBuckets) == 0 {
		// Evaluations are in-memory tree walks: 1µs to ~16ms.
		opts.EvalDurationBuckets = prometheus.ExponentialBuckets(0.000001, 2, 15)
	}

	return &Collector{
		enabled:            cfg.IsEnabled(),
		registry:           registry,
		expressionMetrics:  NewExpressionMetrics(&opts, registry),
		ruleMetrics:        NewRuleMetrics(&opts, registry),
		cacheMetrics:       NewCacheMetrics(&opts, registry),
		auditMetrics:       NewAuditMetrics(&opts, registry),
		cardinalityLimiter: NewCardinalityLimiter(opts.MaxCardinality),
	}
}

func (c *Collector) active() bool {
	return c != nil && c.enabled
}

// RecordCompilation records the outcome of compiling one expression.
//
// Parameters:
//   - result: "success" or "error"
//   - duration: Time spent parsing and optimizing
func (c *Collector) RecordCompilation(result string, duration time.Duration) {
	if !c.active() {
		return
	}
	c.expressionMetrics.RecordCompilation(result, duration)
}

// RecordEvaluation records one program execution. errorKind is empty for
// successful evaluations.
//
// Example:
//
//	collector.RecordEvaluation("no_such_key", 3*time.Microsecond)
func (c *Collector) RecordEvaluation(errorKind string, duration time.Duration) {
	if !c.active() {
		return
	}
	c.expressionMetrics.RecordEvaluation(errorKind, duration)
}

// RecordRuleEvaluation records one rule evaluation and whether it matched.
// Rule names beyond the cardinality limit are reported as "other".
//
// Parameters:
//   - rule: Rule name
//   - action: Action the rule produced ("allow", "deny", "error")
//   - duration: Evaluation duration
func (c *Collector) RecordRuleEvaluation(rule, action string, duration time.Duration) {
	if !c.active() {
		return
	}
	if !c.cardinalityLimiter.Allow("rule:" + rule) {
		rule = OtherLabel
	}
	c.ruleMetrics.RecordEvaluation(rule, action, duration)
}

// RecordRuleDecision records the final decision of a rule set evaluation.
func (c *Collector) RecordRuleDecision(action string) {
	if !c.active() {
		return
	}
	c.ruleMetrics.RecordDecision(action)
}

// RecordRuleReload records a rule file reload attempt. rules is the number of
// rules active after the attempt.
func (c *Collector) RecordRuleReload(result string, rules int) {
	if !c.active() {
		return
	}
	c.ruleMetrics.RecordReload(result, rules)
}

// RecordAuditWrite records the outcome of writing one decision record:
// "stored", "dropped" or "error".
func (c *Collector) RecordAuditWrite(result string) {
	if !c.active() {
		return
	}
	c.auditMetrics.RecordWrite(result)
}

// RecordAuditPruned records decision records removed by retention.
func (c *Collector) RecordAuditPruned(n int64) {
	if !c.active() || n <= 0 {
		return
	}
	c.auditMetrics.RecordPruned(n)
}

// RecordCacheHit records a cache hit.
//
// Parameters:
//   - cacheName: Name of the cache (e.g., "program")
func (c *Collector) RecordCacheHit(cacheName string) {
	if !c.active() {
		return
	}
	c.cacheMetrics.RecordHit(cacheName)
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheName string) {
	if !c.active() {
		return
	}
	c.cacheMetrics.RecordMiss(cacheName)
}

// RecordCacheEviction records a cache eviction.
func (c *Collector) RecordCacheEviction(cacheName string) {
	if !c.active() {
		return
	}
	c.cacheMetrics.RecordEviction(cacheName)
}

// UpdateCacheSize updates the current size of a cache.
func (c *Collector) UpdateCacheSize(cacheName string, size int) {
	if !c.active() {
		return
	}
	c.cacheMetrics.UpdateSize(cacheName, size)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
// Returns false if adding this label set would exceed the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
