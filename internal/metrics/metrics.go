// Package metrics exposes Prometheus collectors for the HTTP layer and the answer store.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lookups  *prometheus.CounterVec
	writes   *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "answer_lookups_total",
				Help: "Answer lookups by partition and result",
			},
			[]string{"partition", "result"},
		),
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "answer_writes_total",
				Help: "Answer submissions by partition and outcome",
			},
			[]string{"partition", "outcome"},
		),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.lookups,
		m.writes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, endpoint string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// ObserveLookup counts one get item.
func (m *Metrics) ObserveLookup(partition, result string) {
	m.lookups.WithLabelValues(partition, result).Inc()
}

// ObserveWrite counts one set item.
func (m *Metrics) ObserveWrite(partition, outcome string) {
	m.writes.WithLabelValues(partition, outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
