// Package observability wires engine lifecycle events into Prometheus
// metrics and provides HTTP instrumentation for the API surface.
package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/glyphhq/glyph/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	sessionOps       *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	renderBytes      prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glyph_session_operations_total",
				Help: "Total session operations by type and outcome",
			},
			[]string{"operation", "outcome"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "glyph_upstream_duration_seconds",
				Help: "Duration of interpreter and renderer calls",
			},
			[]string{"target", "outcome"},
		),
		renderBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "glyph_render_artifact_bytes",
				Help:    "Size of rendered artifacts",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glyph_http_requests_total",
				Help: "Total HTTP requests by route and status",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "glyph_http_request_duration_seconds",
				Help: "HTTP request duration by route",
			},
			[]string{"route", "method"},
		),
	}
	m.registry.MustRegister(
		m.sessionOps,
		m.upstreamDuration,
		m.renderBytes,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Hooks returns lifecycle hooks that record engine events.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionCreate: func(_ context.Context, e *domain.SessionEvent) {
			m.sessionOps.WithLabelValues("create", outcome(e.IsError)).Inc()
		},
		OnModify: func(_ context.Context, e *domain.SessionEvent) {
			m.sessionOps.WithLabelValues("modify", outcome(e.IsError)).Inc()
		},
		OnRegenerate: func(_ context.Context, e *domain.SessionEvent) {
			m.sessionOps.WithLabelValues("regenerate", outcome(e.IsError)).Inc()
		},
		OnRender: func(_ context.Context, e *domain.SessionEvent) {
			m.sessionOps.WithLabelValues("render", outcome(e.IsError)).Inc()
		},
		OnUpstreamCall: func(_ context.Context, e *domain.UpstreamEvent) {
			m.upstreamDuration.WithLabelValues(e.Target, outcome(e.IsError)).Observe(e.Duration.Seconds())
			if e.Target == "renderer" && !e.IsError && e.Bytes > 0 {
				m.renderBytes.Observe(float64(e.Bytes))
			}
		},
	}
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather exposes the underlying registry for tests.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}

// Middleware instruments HTTP handlers with request counts and latency.
// route should be the route pattern, not the raw path, to bound cardinality.
func (m *Metrics) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
			m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func outcome(isErr bool) string {
	if isErr {
		return "error"
	}
	return "ok"
}
