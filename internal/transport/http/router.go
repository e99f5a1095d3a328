package http

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/relaypath/edge/internal/config"
	"github.com/relaypath/edge/internal/infrastructure/telemetry"
	"github.com/relaypath/edge/internal/transport/http/middleware"
)

var spanNames = map[string]string{
	"GET /health":                       "health",
	"GET /metrics":                      "metrics",
	"POST /api/update-redis-cache":      "cache.update",
	"POST /api/delete-redis-cache":      "cache.delete",
	"POST /api/capi-relay":              "capi.relay",
	"POST /api/abuse-report":            "abuse.report",
	"POST /api/log-backoffice-event":    "backoffice.log",
	"POST /api/send-confirmation-email": "email.confirmation",
	"POST /api/add-custom-domain":       "domains.add",
	"POST /api/verify-custom-domain":    "domains.verify",
	"POST /api/get-domain-records":      "domains.records",
	"/":                                 "redirect",
}

// Handlers bundles the route handlers the router wires up.
type Handlers struct {
	Redirect *RedirectHandler
	Admin    *AdminHandler
	Domains  *DomainsHandler
}

type RouterOptions struct {
	EnableCORS    bool
	EnableLogging bool
	EnableMetrics bool
}

func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		EnableCORS:    true,
		EnableLogging: true,
		EnableMetrics: true,
	}
}

func NewRouter(cfg *config.Config, handlers Handlers) http.Handler {
	return NewRouterWithOptions(cfg, handlers, DefaultRouterOptions())
}

func NewRouterWithOptions(cfg *config.Config, handlers Handlers, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	healthHandler := NewHealthHandler(cfg.App.Name, cfg.App.Version)

	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", healthHandler.Metrics())

	apiMiddlewares := []func(http.Handler) http.Handler{
		middleware.APIKeyMiddleware(cfg.Security.APIKeys),
	}
	api := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, apiMiddlewares...)
	}

	mux.Handle("POST /api/update-redis-cache", api(handlers.Admin.UpdateCache))
	mux.Handle("POST /api/delete-redis-cache", api(handlers.Admin.DeleteCache))
	mux.Handle("POST /api/capi-relay", api(handlers.Admin.CapiRelay))
	mux.Handle("POST /api/abuse-report", api(handlers.Admin.AbuseReport))
	mux.Handle("POST /api/log-backoffice-event", api(handlers.Admin.LogBackofficeEvent))
	mux.Handle("POST /api/send-confirmation-email", api(handlers.Admin.SendConfirmationEmail))

	mux.Handle("POST /api/add-custom-domain", api(handlers.Domains.Add))
	mux.Handle("POST /api/verify-custom-domain", api(handlers.Domains.Verify))
	mux.Handle("POST /api/get-domain-records", api(handlers.Domains.Records))

	// Everything else is visitor traffic: slugs, domain roots, crawler
	// noise. The redirect handler decides which.
	mux.HandleFunc("/", handlers.Redirect.Redirect)

	var innerHandler http.Handler = mux
	if opts.EnableCORS {
		innerHandler = middleware.CORSMiddleware(innerHandler)
	}
	if opts.EnableLogging {
		innerHandler = middleware.LoggingMiddleware(innerHandler)
	}
	if opts.EnableMetrics {
		innerHandler = middleware.MetricsMiddleware(innerHandler)
	}

	otelOptions := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			key := r.Method + " " + r.Pattern
			if name, ok := spanNames[key]; ok {
				return name
			}
			if r.Pattern == "/" {
				return "redirect"
			}
			if r.Pattern != "" {
				return r.Pattern
			}
			path := strings.TrimSpace(r.URL.Path)
			if path == "" {
				path = "/"
			}
			return path
		}),
	}

	if telemetry.TracerProvider != nil {
		otelOptions = append(otelOptions, otelhttp.WithTracerProvider(telemetry.TracerProvider))
	}

	return otelhttp.NewHandler(innerHandler, cfg.App.Name, otelOptions...)
}
