package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    string
	}{
		{"unmatched pattern is visitor traffic", "", "redirect"},
		{"catch-all is visitor traffic", "/", "redirect"},
		{"management route keeps its pattern", "POST /api/update-redis-cache", "POST /api/update-redis-cache"},
		{"health keeps its pattern", "GET /health", "GET /health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := routeLabel(tt.pattern); got != tt.want {
				t.Errorf("routeLabel(%q) = %q, want %q", tt.pattern, got, tt.want)
			}
		})
	}
}

func TestMetricsMiddlewareCountsRedirectTraffic(t *testing.T) {
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "redirect", "302")
	before := testutil.ToFloat64(counter)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/promo", nil))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Fatalf("redirect counter delta = %v, want 1", got)
	}
}

func TestMetricsMiddlewareSkipsNoise(t *testing.T) {
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "redirect", "204")
	before := testutil.ToFloat64(counter)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))

	if got := testutil.ToFloat64(counter); got != before {
		t.Fatalf("noise requests must not be counted, delta = %v", got-before)
	}
}

func TestRecordVerdict(t *testing.T) {
	counter := redirectVerdicts.WithLabelValues("bot_certain")
	before := testutil.ToFloat64(counter)

	RecordVerdict("bot_certain")

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Fatalf("verdict counter delta = %v, want 1", got)
	}
}
