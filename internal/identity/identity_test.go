package identity

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/wellness-planner/internal/domain"
)

func TestCredentialRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashCredential("s3cret")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret", hash)

	require.NoError(t, CheckCredential(hash, "s3cret"))
	require.ErrorIs(t, CheckCredential(hash, "wrong"), domain.ErrInvalidCredential)
	require.ErrorIs(t, CheckCredential("", "anything"), domain.ErrInvalidCredential)

	empty, err := HashCredential("")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestHashCredentialCountsBytes(t *testing.T) {
	t.Parallel()

	// 40 runes, 80 bytes.
	_, err := HashCredential(strings.Repeat("é", 40))
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	hash, err := HashCredential(strings.Repeat("é", 36))
	require.NoError(t, err)
	require.NoError(t, CheckCredential(hash, strings.Repeat("é", 36)))
}

func TestTokenStoreExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewTokenStore(time.Hour)
	s.now = func() time.Time { return now }

	token, expiresAt, err := s.Issue(7)
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	uid, ok := s.Resolve(token)
	require.True(t, ok)
	assert.Equal(t, int64(7), uid)

	now = now.Add(time.Hour)
	_, ok = s.Resolve(token)
	assert.False(t, ok, "token must expire at its deadline")
}

func TestTokenStoreRevokeAndSweep(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := NewTokenStore(time.Minute)
	s.now = func() time.Time { return now }

	a, _, err := s.Issue(1)
	require.NoError(t, err)
	b, _, err := s.Issue(2)
	require.NoError(t, err)

	s.RevokeUser(1)
	_, ok := s.Resolve(a)
	assert.False(t, ok)
	_, ok = s.Resolve(b)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	s := NewTokenStore(time.Hour)
	token, _, err := s.Issue(42)
	require.NoError(t, err)

	var seen int64
	h := Middleware(s)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "unknown", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "header", header: "Bearer " + token, want: http.StatusNoContent},
		{name: "query", query: "?token=" + token, want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/session"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
	assert.Equal(t, int64(42), seen)
}
