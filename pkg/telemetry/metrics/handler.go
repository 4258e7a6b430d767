package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the collector's registry in the OpenMetrics format, for
// mounting at MetricsConfig.Path on the decision server. Scrapes are
// themselves counted in promhttp_metric_handler_requests_total.
//
// A failing collector yields a partial page rather than a 500, so one bad
// series cannot hide the decision counters.
func (c *Collector) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(c.registry, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		Registry:          c.registry,
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
}
