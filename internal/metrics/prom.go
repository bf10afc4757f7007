package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds the Prometheus instruments mirrored from the engine's
// recording path. They share the engine's lifecycle: one run, one registry.
type Collectors struct {
	registry *prometheus.Registry

	requestsTotal  *prometheus.CounterVec
	latencySeconds prometheus.Histogram
	activeWorkers  prometheus.Gauge
	workerFailures *prometheus.CounterVec
}

// NewCollectors creates the run's Prometheus instruments on a fresh
// registry.
func NewCollectors() *Collectors {
	registry := prometheus.NewRegistry()

	c := &Collectors{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surge",
			Name:      "requests_total",
			Help:      "Endpoint invocations, partitioned by outcome.",
		}, []string{"outcome"}),
		latencySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "surge",
			Name:      "request_duration_seconds",
			Help:      "Endpoint invocation latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "surge",
			Name:      "active_workers",
			Help:      "Currently active load workers.",
		}),
		workerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surge",
			Name:      "worker_failures_total",
			Help:      "Worker lifecycle failures, partitioned by operation.",
		}, []string{"op"}),
	}

	registry.MustRegister(c.requestsTotal, c.latencySeconds, c.activeWorkers, c.workerFailures)
	return c
}

// Handler returns an HTTP handler exposing the run's metrics.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collectors) observeRequest(duration time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.requestsTotal.WithLabelValues(outcome).Inc()
	c.latencySeconds.Observe(duration.Seconds())
}

func (c *Collectors) setActiveWorkers(count int) {
	c.activeWorkers.Set(float64(count))
}

func (c *Collectors) observeWorkerFailure(op string) {
	c.workerFailures.WithLabelValues(op).Inc()
}
