package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantCreds  string
		wantStatus int
	}{
		{"wildcard", []string{"*"}, "http://a.test", http.MethodGet, "http://a.test", "", http.StatusOK},
		{"explicit", []string{"http://a.test"}, "http://a.test", http.MethodGet, "http://a.test", "true", http.StatusOK},
		{"denied", []string{"http://a.test"}, "http://b.test", http.MethodGet, "", "", http.StatusOK},
		{"preflight", []string{"*"}, "http://a.test", http.MethodOptions, "http://a.test", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, "/api/agent/chat", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()
			CORS(tt.allowed)(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, rr.Header().Get("Access-Control-Allow-Credentials"))
			if tt.wantOrigin != "" {
				assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")
			}
		})
	}
}

func TestOriginHosts(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"*"}, OriginHosts(""))
	assert.Equal(t, []string{"localhost:5173"}, OriginHosts("http://localhost:5173"))
	assert.Equal(t, []string{"http://x.test"}, AllowedOrigins("http://x.test"))
}
