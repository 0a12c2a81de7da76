// Package metrics exposes Prometheus instrumentation for the web server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	checkIns      *prometheus.CounterVec
	subscriptions *prometheus.CounterVec
}

// New registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gym_http_requests_total",
				Help: "HTTP requests by route, method and status code.",
			},
			[]string{"route", "method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gym_http_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		checkIns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gym_checkins_total",
				Help: "Member card scans by outcome.",
			},
			[]string{"result"},
		),
		subscriptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gym_subscription_events_total",
				Help: "Subscription lifecycle events.",
			},
			[]string{"event"},
		),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.checkIns,
		m.subscriptions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CheckIn counts a card scan outcome.
func (m *Metrics) CheckIn(result string) {
	m.checkIns.WithLabelValues(result).Inc()
}

// SubscriptionEvent counts signups, renewals, submissions and approvals.
func (m *Metrics) SubscriptionEvent(event string) {
	m.subscriptions.WithLabelValues(event).Inc()
}

// StatusWriter records the status code written by a handler.
type StatusWriter struct {
	http.ResponseWriter
	Status int
}

// NewStatusWriter wraps w with a default status of 200.
func NewStatusWriter(w http.ResponseWriter) *StatusWriter {
	return &StatusWriter{ResponseWriter: w, Status: http.StatusOK}
}

func (w *StatusWriter) WriteHeader(code int) {
	w.Status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *StatusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Instrument wraps next so each request is counted under route.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := NewStatusWriter(w)
		next.ServeHTTP(sw, r)
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(sw.Status)).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
