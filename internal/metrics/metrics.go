// Package metrics exposes Prometheus collectors for ingestion runs and the
// HTTP API.
//
// Collectors are registered on a caller-supplied registry so tests and
// multiple instances never collide on the global default.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ducksgather"

// Ingest holds ingestion metrics
type Ingest struct {
	Pages       *prometheus.CounterVec
	Records     *prometheus.CounterVec
	Runs        *prometheus.CounterVec
	RunDuration prometheus.Histogram
	LastSuccess prometheus.Gauge
}

// NewIngest registers ingestion collectors on reg
func NewIngest(reg prometheus.Registerer) *Ingest {
	factory := promauto.With(reg)
	return &Ingest{
		Pages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "pages_total",
			Help:      "Listing pages fetched, by result.",
		}, []string{"result"}),
		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Event records seen by the pipeline, by outcome.",
		}, []string{"outcome"}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Completed ingestion runs, by final state.",
		}, []string{"state"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of ingestion runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that reached Done.",
		}),
	}
}

// PageFetched counts one page by result label
func (m *Ingest) PageFetched(result string) {
	m.Pages.WithLabelValues(result).Inc()
}

// RecordsSeen adds n records under outcome
func (m *Ingest) RecordsSeen(outcome string, n int) {
	if n <= 0 {
		return
	}
	m.Records.WithLabelValues(outcome).Add(float64(n))
}

// RunFinished records a run's final state and duration
func (m *Ingest) RunFinished(state string, d time.Duration) {
	m.Runs.WithLabelValues(state).Inc()
	m.RunDuration.Observe(d.Seconds())
	if state == "done" {
		m.LastSuccess.SetToCurrentTime()
	}
}

// HTTP holds API request metrics
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewHTTP registers request collectors on reg
func NewHTTP(reg prometheus.Registerer) *HTTP {
	factory := promauto.With(reg)
	return &HTTP{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by method, route and status.",
		}, []string{"method", "route", "status"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Middleware records every request handled by the gin engine
func (m *HTTP) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.Duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
