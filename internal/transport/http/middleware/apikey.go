package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/relaypath/edge/internal/constants"
	"github.com/relaypath/edge/pkg/httputils"
)

const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware guards the management surface: cache writes, relay
// pass-throughs and domain provisioning. With no keys configured it
// fails closed; a missing secret must never leave those endpoints
// running open.
func APIKeyMiddleware(allowedKeys []string) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(allowedKeys))
	for _, k := range allowedKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 {
				httputils.WriteAPIError(w, r, constants.ErrAPIKeysUnconfigured)
				return
			}

			apiKey := strings.TrimSpace(r.Header.Get(APIKeyHeader))
			if apiKey == "" || !keyAllowed(keys, apiKey) {
				httputils.WriteAPIError(w, r, constants.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// keyAllowed compares the candidate against every configured key in
// constant time, without early exit on a match.
func keyAllowed(keys [][]byte, candidate string) bool {
	c := []byte(candidate)
	matched := false
	for _, k := range keys {
		if subtle.ConstantTimeCompare(k, c) == 1 {
			matched = true
		}
	}
	return matched
}
