package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for graphview
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Synthesis Metrics
	SynthesisRunsTotal        *prometheus.CounterVec
	SynthesisDuration         prometheus.Histogram
	SynthesisNodes            prometheus.Histogram
	SynthesisEdgesTotal       *prometheus.CounterVec
	SynthesisSkippedDocuments prometheus.Counter
	SynthesisDroppedEdges     prometheus.Counter

	// Layout Metrics
	LayoutSessionsTotal   *prometheus.CounterVec
	LayoutSessionsActive  prometheus.Gauge
	LayoutIterations      prometheus.Histogram
	LayoutFrameDuration   prometheus.Histogram
	LayoutFramesPublished prometheus.Counter

	// System Metrics
	UptimeSeconds prometheus.Gauge
	GoRoutines    prometheus.Gauge

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initHTTPMetrics()
	r.initSynthesisMetrics()
	r.initLayoutMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
