// Package metrics exposes Prometheus metrics for analyses and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its registry so tests and multiple instances do not collide.
type Collector struct {
	registry *prometheus.Registry

	analysesTotal      *prometheus.CounterVec
	analysisDuration   *prometheus.HistogramVec
	analysisAttempts   prometheus.Histogram
	generationsTotal   *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpRequestLatency *prometheus.HistogramVec
	httpInFlight       prometheus.Gauge
}

func NewCollector(namespace string) *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.analysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analyses_total",
		Help:      "Finished video analyses by outcome",
	}, []string{"outcome"})

	c.analysisDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_duration_seconds",
		Help:      "End to end analysis duration including upload, polling and backoff",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
	}, []string{"outcome"})

	c.analysisAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_generation_attempts",
		Help:      "Generation attempts used per analysis",
		Buckets:   []float64{0, 1, 2, 3, 5},
	})

	c.generationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generation_requests_total",
		Help:      "Generation calls by status (ok, rate_limited, error)",
	}, []string{"status"})

	c.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	c.httpRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	c.httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "HTTP requests currently being served",
	})

	c.registry.MustRegister(
		c.analysesTotal, c.analysisDuration, c.analysisAttempts, c.generationsTotal,
		c.httpRequestsTotal, c.httpRequestLatency, c.httpInFlight,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return c
}

// RecordAnalysis implements the analysis recorder.
func (c *Collector) RecordAnalysis(outcome string, attempts int, d time.Duration) {
	c.analysesTotal.WithLabelValues(outcome).Inc()
	c.analysisDuration.WithLabelValues(outcome).Observe(d.Seconds())
	c.analysisAttempts.Observe(float64(attempts))
}

func (c *Collector) RecordGeneration(status string) {
	c.generationsTotal.WithLabelValues(status).Inc()
}

func (c *Collector) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestLatency.WithLabelValues(method, path).Observe(d.Seconds())
}

func (c *Collector) InFlightInc() { c.httpInFlight.Inc() }
func (c *Collector) InFlightDec() { c.httpInFlight.Dec() }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
