package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/relaypath/edge/internal/processing/classify"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_http_requests_total",
			Help: "Total HTTP requests by route",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	redirectVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_redirect_verdicts_total",
			Help: "Redirect decisions by verdict label",
		},
		[]string{"verdict"},
	)
)

// RecordVerdict counts one redirect decision. The verdict label set is
// small and fixed, so cardinality stays bounded.
func RecordVerdict(verdict string) {
	redirectVerdicts.WithLabelValues(verdict).Inc()
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware records Prometheus metrics for each request.
// Classifier noise is excluded: those requests must leave no telemetry.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &metricsResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode == http.StatusNoContent && classify.IsNoisePath(r.URL.Path) {
			return
		}

		duration := time.Since(start).Seconds()
		route := routeLabel(r.Pattern)
		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
	})
}

// routeLabel maps the matched mux pattern to a bounded label. Visitor
// traffic all lands on the catch-all pattern; using the slug itself
// would make the label set unbounded.
func routeLabel(pattern string) string {
	switch pattern {
	case "", "/":
		return "redirect"
	default:
		return pattern
	}
}
