// Package observability exposes Prometheus metrics for the API and the
// offline sync queue.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	calculations      *prometheus.CounterVec
	syncSent          *prometheus.CounterVec
	syncFailed        *prometheus.CounterVec
	queueDepth        prometheus.Gauge
}

// NewMetrics registers the collectors on reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "estimates_total",
			Help: "Estimates computed, by source (preview, save, cli).",
		}, []string{"source"}),
		syncSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_items_sent_total",
			Help: "Queued records delivered, by kind.",
		}, []string{"kind"}),
		syncFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_send_failures_total",
			Help: "Failed delivery attempts, by kind.",
		}, []string{"kind"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sync_queue_depth",
			Help: "Records waiting in the offline queue.",
		}),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.calculations,
		m.syncSent,
		m.syncFailed,
		m.queueDepth,
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and durations labelled by the chi route
// pattern, so /api/projects/{id} is one series regardless of the id.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) EstimateComputed(source string) {
	if m == nil {
		return
	}
	m.calculations.WithLabelValues(source).Inc()
}

func (m *Metrics) SyncSent(kind string) {
	if m == nil {
		return
	}
	m.syncSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) SyncFailed(kind string) {
	if m == nil {
		return
	}
	m.syncFailed.WithLabelValues(kind).Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
