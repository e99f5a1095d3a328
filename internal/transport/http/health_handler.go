package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaypath/edge/pkg/httputils"
)

// HealthHandler serves liveness and Prometheus scrape endpoints. Both
// sit outside the API-key gate so load balancers and the scraper can
// reach them.
type HealthHandler struct {
	service string
	version string
}

func NewHealthHandler(service, version string) *HealthHandler {
	return &HealthHandler{service: service, version: version}
}

// Health reports process liveness. Dependency outages surface through
// per-request fallbacks and metrics instead, so the edge keeps serving
// cached redirects while a backing store is down.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": h.service,
		"version": h.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Metrics exposes the Prometheus registry.
func (h *HealthHandler) Metrics() http.Handler {
	return promhttp.Handler()
}
