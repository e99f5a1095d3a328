package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func guardedEndpoint() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func callManagement(t *testing.T, mw http.Handler, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/update-redis-cache", strings.NewReader("{}"))
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyMiddlewareValidKey(t *testing.T) {
	mw := APIKeyMiddleware([]string{"mgmt-key-1", "mgmt-key-2"})(guardedEndpoint())

	for _, key := range []string{"mgmt-key-1", "mgmt-key-2"} {
		if rec := callManagement(t, mw, key); rec.Code != http.StatusOK {
			t.Errorf("key %q: status = %d, want %d", key, rec.Code, http.StatusOK)
		}
	}
}

func TestAPIKeyMiddlewareRejects(t *testing.T) {
	mw := APIKeyMiddleware([]string{"mgmt-key-1"})(guardedEndpoint())

	tests := []struct {
		name string
		key  string
	}{
		{"missing header", ""},
		{"wrong key", "not-the-key"},
		{"prefix of a valid key", "mgmt-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := callManagement(t, mw, tt.key); rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAPIKeyMiddlewareFailsClosedWithoutKeys(t *testing.T) {
	// No configured keys must not run the management surface open;
	// the endpoints answer 503 until the secret is provisioned.
	for _, keys := range [][]string{nil, {}, {"  "}} {
		mw := APIKeyMiddleware(keys)(guardedEndpoint())
		if rec := callManagement(t, mw, "anything"); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("keys %v: status = %d, want %d", keys, rec.Code, http.StatusServiceUnavailable)
		}
	}
}
