package metrics

import (
	"mercator-hq/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics follows the compiled-program cache, labelled by cache name
// so a second cache can share the series.
//
//   - mercator_gateway_cache_hits_total
//   - mercator_gateway_cache_misses_total
//   - mercator_gateway_cache_evictions_total
//   - mercator_gateway_cache_entries
type CacheMetrics struct {
	hitsTotal      *prometheus.CounterVec
	missesTotal    *prometheus.CounterVec
	evictionsTotal *prometheus.CounterVec
	entries        *prometheus.GaugeVec
}

// NewCacheMetrics registers the cache series with registry.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	perCache := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		}, []string{"cache"})
	}

	cm := &CacheMetrics{
		hitsTotal:      perCache("cache_hits_total", "Total number of cache hits"),
		missesTotal:    perCache("cache_misses_total", "Total number of cache misses"),
		evictionsTotal: perCache("cache_evictions_total", "Total number of cache evictions"),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cache_entries",
			Help:      "Number of entries in the cache",
		}, []string{"cache"}),
	}
	registry.MustRegister(cm.hitsTotal, cm.missesTotal, cm.evictionsTotal, cm.entries)
	return cm
}

func (cm *CacheMetrics) RecordHit(cache string)      { cm.hitsTotal.WithLabelValues(cache).Inc() }
func (cm *CacheMetrics) RecordMiss(cache string)     { cm.missesTotal.WithLabelValues(cache).Inc() }
func (cm *CacheMetrics) RecordEviction(cache string) { cm.evictionsTotal.WithLabelValues(cache).Inc() }

// UpdateSize sets the entry gauge for cache.
func (cm *CacheMetrics) UpdateSize(cache string, size int) {
	cm.entries.WithLabelValues(cache).Set(float64(size))
}
