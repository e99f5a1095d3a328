package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSMiddleware answers preflights and adds CORS headers via rs/cors.
// Origins stay open: short links are embedded anywhere, and the
// management layer calls in from its own hosts.
func CORSMiddleware(next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		// The surface is redirects plus JSON POSTs; there is nothing
		// to PUT or DELETE.
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Content-Type",
			"Accept",
			"Origin",
			APIKeyHeader,
			"X-Correlation-Id",
			// OpenTelemetry headers
			"traceparent",
			"tracestate",
			"baggage",
		},
		AllowCredentials: true,
	})

	return c.Handler(next)
}
