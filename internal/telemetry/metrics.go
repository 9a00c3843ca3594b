package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	ExportsCreated   = prometheus.NewCounter(prometheus.CounterOpts{Name: "exports_created_total", Help: "Export jobs accepted at intake"})
	ExportsCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "exports_completed_total", Help: "Export jobs that produced an artifact"})
	ExportsFailed    = prometheus.NewCounter(prometheus.CounterOpts{Name: "exports_failed_total", Help: "Export jobs that ended in failure"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "export_rate_limit_rejects_total", Help: "Intake requests rejected by the rate limiter"})
	PhotoFetchFails  = prometheus.NewCounter(prometheus.CounterOpts{Name: "export_photo_fetch_failures_total", Help: "Photo downloads that degraded to a placeholder"})
	QueueDepthGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "export_queue_depth", Help: "Ready queue depth"})
	InFlightGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "exports_inflight", Help: "Export jobs currently leased"})
	RenderSeconds    = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "export_render_seconds",
		Help:    "Wall-clock duration of report rendering",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"format"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			ExportsCreated,
			ExportsCompleted,
			ExportsFailed,
			RateLimitRejects,
			PhotoFetchFails,
			QueueDepthGauge,
			InFlightGauge,
			RenderSeconds,
		)
	})
	return promhttp.Handler()
}
