// Package metrics provides a Prometheus-based engine.MetricsReporter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samvad-hq/httpbridge/internal/engine"
)

const namespace = "httpbridge"

// PrometheusMetrics implements engine.MetricsReporter on its own registry,
// so several engines in one process never collide.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	failures     *prometheus.CounterVec
	liveHandles  prometheus.Gauge
	bytesRead    prometheus.Counter
	shutdownWait prometheus.Histogram
}

var _ engine.MetricsReporter = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the engine collectors on a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests handed to the transport",
		}, []string{"method", "outcome"}), // outcome: ok, invalid_argument, transport_error, timeout, ...
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of transport calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed operations by operation and error kind",
		}, []string{"op", "kind"}),
		liveHandles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_handles",
			Help:      "Response handles allocated and not yet freed",
		}),
		bytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "body_bytes_read_total",
			Help:      "Response body bytes copied out to callers",
		}),
		shutdownWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shutdown_wait_seconds",
			Help:      "Time shutdown spent waiting for in-flight requests",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// Registry exposes the collectors, e.g. for promhttp or testutil.
func (m *PrometheusMetrics) Registry() *prometheus.Registry { return m.registry }

// RecordRequest records one transport call and how it ended.
func (m *PrometheusMetrics) RecordRequest(method, outcome string, seconds float64) {
	m.requests.WithLabelValues(method, outcome).Inc()
	m.duration.WithLabelValues(method).Observe(seconds)
}

// RecordFailure records a failed operation.
func (m *PrometheusMetrics) RecordFailure(op, kind string) {
	m.failures.WithLabelValues(op, kind).Inc()
}

// AddLiveHandles moves the live handle gauge by delta.
func (m *PrometheusMetrics) AddLiveHandles(delta int) {
	m.liveHandles.Add(float64(delta))
}

// AddBytesRead counts body bytes handed to a caller.
func (m *PrometheusMetrics) AddBytesRead(n int) {
	if n > 0 {
		m.bytesRead.Add(float64(n))
	}
}

// RecordShutdown records how long shutdown waited for in-flight calls.
func (m *PrometheusMetrics) RecordShutdown(seconds float64) {
	m.shutdownWait.Observe(seconds)
}
