// Package metrics exposes the service's Prometheus collectors. All methods are
// safe to call on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry prometheus.Gatherer

	connections  prometheus.Gauge
	broadcasts   prometheus.Counter
	evictions    prometheus.Counter
	answers      *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quiz_ws_connections",
			Help: "Live WebSocket subscribers",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_broadcasts_total",
			Help: "Quiz state broadcasts fanned out",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_ws_evictions_total",
			Help: "Subscribers evicted by the heartbeat",
		}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_answers_total",
			Help: "Accepted answer submissions by outcome",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_transitions_total",
			Help: "Lifecycle transitions by target phase",
		}, []string{"phase"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		}, []string{"method", "endpoint"}),
	}
	reg.MustRegister(
		m.connections, m.broadcasts, m.evictions, m.answers, m.transitions,
		m.httpRequests, m.httpDuration,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) SetConnections(n int) {
	if m != nil {
		m.connections.Set(float64(n))
	}
}

func (m *Metrics) Broadcast() {
	if m != nil {
		m.broadcasts.Inc()
	}
}

func (m *Metrics) Evicted() {
	if m != nil {
		m.evictions.Inc()
	}
}

// Answer counts an accepted answer; outcome is correct, incorrect or skipped.
func (m *Metrics) Answer(outcome string) {
	if m != nil {
		m.answers.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Transition(phase string) {
	if m != nil {
		m.transitions.WithLabelValues(phase).Inc()
	}
}

// Middleware records request counts and latencies per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
