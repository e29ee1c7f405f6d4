package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Frame outcomes recorded by FramesTotal.
const (
	StatusBuilt   = "built"
	StatusCached  = "cached"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

var (
	frameDurationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}
	iterationBuckets     = []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144, 233, 377, 610, 987}
)

// Metrics holds the pipeline metrics on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	FramesTotal        *prometheus.CounterVec
	FrameDuration      prometheus.Histogram
	GrowthIterations   prometheus.Histogram
	ReconIterations    prometheus.Histogram
	ReconWarningsTotal prometheus.Counter
	CacheHitsTotal     prometheus.Counter
}

// NewMetrics registers all metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "isurf_frames_total",
			Help: "Frames processed by outcome.",
		}, []string{"status"}),
		FrameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "isurf_frame_duration_seconds",
			Help:    "Wall time to build and reconstruct one frame.",
			Buckets: frameDurationBuckets,
		}),
		GrowthIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "isurf_growth_iterations",
			Help:    "Linear solves per side during pivot growth.",
			Buckets: iterationBuckets,
		}),
		ReconIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "isurf_recon_iterations",
			Help:    "Linear solves per side during surface reconstruction.",
			Buckets: iterationBuckets,
		}),
		ReconWarningsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "isurf_recon_warnings_total",
			Help: "Sides whose reconstruction did not converge.",
		}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "isurf_cache_hits_total",
			Help: "Frames served from the coefficient store.",
		}),
	}
	m.registry.MustRegister(
		m.FramesTotal,
		m.FrameDuration,
		m.GrowthIterations,
		m.ReconIterations,
		m.ReconWarningsTotal,
		m.CacheHitsTotal,
	)
	return m
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFrame records one frame outcome. A nil receiver is a no-op so
// callers can run without metrics.
func (m *Metrics) ObserveFrame(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(status).Inc()
	if status == StatusBuilt {
		m.FrameDuration.Observe(d.Seconds())
	}
}

// ObserveGrowth records the solve count of one side's growth loop.
func (m *Metrics) ObserveGrowth(solves int) {
	if m == nil {
		return
	}
	m.GrowthIterations.Observe(float64(solves))
}

// ObserveRecon records the solve count of one side's reconstruction.
func (m *Metrics) ObserveRecon(iterations int, converged bool) {
	if m == nil {
		return
	}
	m.ReconIterations.Observe(float64(iterations))
	if !converged {
		m.ReconWarningsTotal.Inc()
	}
}

// CacheHit records a frame served from the store.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}
