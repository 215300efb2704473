package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initLayoutMetrics() {
	r.LayoutSessionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphview_layout_sessions_total",
			Help: "Layout sessions that reached a terminal state, by outcome",
		},
		[]string{"outcome"},
	)

	r.LayoutSessionsActive = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "graphview_layout_sessions_active",
			Help: "Layout sessions currently running",
		},
	)

	r.LayoutIterations = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphview_layout_iterations",
			Help:    "Iterations performed per finished layout session",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)

	r.LayoutFrameDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphview_layout_frame_duration_seconds",
			Help:    "Time spent computing a single relaxation step",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.016, 0.05, 0.1},
		},
	)

	r.LayoutFramesPublished = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "graphview_layout_frames_published_total",
			Help: "Total number of layout frames published",
		},
	)
}
