// Package metrics provides Prometheus instrumentation for the score engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RoundsSettled counts rounds settled and persisted.
	RoundsSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jansou_rounds_settled_total",
		Help: "Total number of rounds settled",
	})

	// SettleLatency tracks time spent ranking and settling a round, storage excluded.
	SettleLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jansou_settle_latency_seconds",
		Help:    "Round settlement latency in seconds",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})

	// SettlementRejections counts rounds rejected before persistence, by kind
	// ("config", "validation", "players").
	SettlementRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jansou_settlement_rejections_total",
		Help: "Rounds rejected by the settlement engine",
	}, []string{"kind"})

	// RoomsCreated counts rooms created.
	RoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jansou_rooms_created_total",
		Help: "Total number of rooms created",
	})

	// RoomsDeleted counts rooms deleted, by reason ("manual" or "idle").
	RoomsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jansou_rooms_deleted_total",
		Help: "Total number of rooms deleted",
	}, []string{"reason"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jansou_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jansou_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern labels by chi route pattern (/api/v1/rooms/{code}) so room
// codes do not become label values.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
