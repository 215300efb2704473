package metrics

import (
	"runtime"
	"time"
)

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSynthesis records one graph synthesis pass
func (r *Registry) RecordSynthesis(duration time.Duration, nodes, structural, reference, skipped, dropped int) {
	r.SynthesisRunsTotal.WithLabelValues("success").Inc()
	r.SynthesisDuration.Observe(duration.Seconds())
	r.SynthesisNodes.Observe(float64(nodes))
	r.SynthesisEdgesTotal.WithLabelValues("structural").Add(float64(structural))
	r.SynthesisEdgesTotal.WithLabelValues("reference").Add(float64(reference))
	r.SynthesisSkippedDocuments.Add(float64(skipped))
	r.SynthesisDroppedEdges.Add(float64(dropped))
}

// RecordSynthesisFailure counts a synthesis pass that never ran, e.g. because
// the document fetch failed
func (r *Registry) RecordSynthesisFailure() {
	r.SynthesisRunsTotal.WithLabelValues("error").Inc()
}

// SessionStarted marks a layout session as running
func (r *Registry) SessionStarted() {
	r.LayoutSessionsActive.Inc()
}

// SessionFinished records a layout session reaching a terminal state
func (r *Registry) SessionFinished(outcome string, iterations int) {
	r.LayoutSessionsActive.Dec()
	r.LayoutSessionsTotal.WithLabelValues(outcome).Inc()
	r.LayoutIterations.Observe(float64(iterations))
}

// RecordFrame records one published layout frame
func (r *Registry) RecordFrame(duration time.Duration) {
	r.LayoutFrameDuration.Observe(duration.Seconds())
	r.LayoutFramesPublished.Inc()
}

// UpdateSystemMetrics refreshes process-level gauges
func (r *Registry) UpdateSystemMetrics(start time.Time) {
	r.UptimeSeconds.Set(time.Since(start).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
}
