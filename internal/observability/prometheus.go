package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetricsRecorder exports operation outcomes and run counters
// through a dedicated Prometheus registry, for deployments scraped by an
// external collector.
type PrometheusMetricsRecorder struct {
	registry  *prometheus.Registry
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
	counters  *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder constructs a recorder with its own registry
// so repeated construction in tests never collides on metric registration.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	registry := prometheus.NewRegistry()
	rec := &PrometheusMetricsRecorder{
		registry: registry,
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "obsingest_operation_duration_seconds",
			Help:    "Wall-clock duration of ingestion pipeline operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obsingest_operations_total",
			Help: "Completed ingestion pipeline operations by outcome.",
		}, []string{"operation", "status"}),
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obsingest_run_events_total",
			Help: "Named run events, such as stale planes removed.",
		}, []string{"event"}),
	}
	registry.MustRegister(rec.durations, rec.results, rec.counters)
	return rec
}

// Observe records a pipeline operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}

// Add increments a named run counter.
func (r *PrometheusMetricsRecorder) Add(counter string, delta int64) {
	if counter == "" || delta <= 0 {
		return
	}
	r.counters.WithLabelValues(counter).Add(float64(delta))
}

// Registry exposes the backing registry for gathering in tests.
func (r *PrometheusMetricsRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler serving the scrape endpoint.
func (r *PrometheusMetricsRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

var (
	_ MetricsRecorder = (*PrometheusMetricsRecorder)(nil)
	_ CounterRecorder = (*PrometheusMetricsRecorder)(nil)
	_ CounterRecorder = (*ExpvarMetricsRecorder)(nil)
)
