package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSynthesisMetrics() {
	r.SynthesisRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphview_synthesis_runs_total",
			Help: "Total number of graph synthesis passes",
		},
		[]string{"status"},
	)

	r.SynthesisDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphview_synthesis_duration_seconds",
			Help:    "Graph synthesis duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	r.SynthesisNodes = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphview_synthesis_nodes",
			Help:    "Number of nodes produced per synthesis pass",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 5000},
		},
	)

	r.SynthesisEdgesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphview_synthesis_edges_total",
			Help: "Total number of edges produced, by kind",
		},
		[]string{"kind"},
	)

	r.SynthesisSkippedDocuments = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "graphview_synthesis_skipped_documents_total",
			Help: "Documents skipped because their graph could not be decoded",
		},
	)

	r.SynthesisDroppedEdges = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "graphview_synthesis_dropped_edges_total",
			Help: "Structural edges dropped because an endpoint was missing",
		},
	)
}
