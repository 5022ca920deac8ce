// Package identity provides credential hashing and bearer-token identity.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ashureev/wellness-planner/internal/domain"
)

const (
	// DefaultTokenTTL is how long an issued token stays valid.
	DefaultTokenTTL = 24 * time.Hour
	bearerPrefix    = "Bearer "

	// MaxCredentialBytes is the longest credential bcrypt accepts.
	MaxCredentialBytes = 72
)

type contextKey int

const userIDKey contextKey = iota

// HashCredential returns the bcrypt hash of credential. An empty credential
// hashes to the empty string; such identities cannot authenticate.
func HashCredential(credential string) (string, error) {
	if credential == "" {
		return "", nil
	}
	if len(credential) > MaxCredentialBytes {
		return "", fmt.Errorf("%w: password exceeds %d bytes", domain.ErrInvalidInput, MaxCredentialBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(hash), nil
}

// CheckCredential compares credential against hash.
func CheckCredential(hash, credential string) error {
	if hash == "" || credential == "" {
		return domain.ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)); err != nil {
		return domain.ErrInvalidCredential
	}
	return nil
}

// WithUserID returns a context carrying uid.
func WithUserID(ctx context.Context, uid int64) context.Context {
	return context.WithValue(ctx, userIDKey, uid)
}

// UserIDFromContext extracts the authenticated uid from the request context.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	uid, ok := ctx.Value(userIDKey).(int64)
	return uid, ok && uid > 0
}

type tokenEntry struct {
	uid       int64
	expiresAt time.Time
}

// TokenStore keeps opaque bearer tokens in memory.
type TokenStore struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	tokens map[string]tokenEntry
}

// NewTokenStore creates a token store. A non-positive ttl uses DefaultTokenTTL.
func NewTokenStore(ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenStore{ttl: ttl, now: time.Now, tokens: make(map[string]tokenEntry)}
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Issue creates a token for uid.
func (s *TokenStore) Issue(uid int64) (string, time.Time, error) {
	token, err := generateToken()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := s.now().Add(s.ttl).UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = tokenEntry{uid: uid, expiresAt: expiresAt}
	return token, expiresAt, nil
}

// Resolve returns the uid a live token belongs to. Expired tokens are dropped.
func (s *TokenStore) Resolve(token string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tokens[token]
	if !ok {
		return 0, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.tokens, token)
		return 0, false
	}
	return e.uid, true
}

// RevokeUser drops every token issued to uid.
func (s *TokenStore) RevokeUser(uid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, e := range s.tokens {
		if e.uid == uid {
			delete(s.tokens, token)
		}
	}
}

// Sweep removes expired tokens and returns how many were dropped.
func (s *TokenStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for token, e := range s.tokens {
		if !now.Before(e.expiresAt) {
			delete(s.tokens, token)
			n++
		}
	}
	return n
}

// RunSweeper sweeps expired tokens every interval until ctx is done.
func (s *TokenStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// TokenFromRequest reads the bearer token from the Authorization header, or
// from the token query parameter for websocket clients that cannot set headers.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects requests without a live bearer token and injects the
// uid into the request context.
func Middleware(tokens *TokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}
			uid, ok := tokens.Resolve(token)
			if !ok {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for rate limiting anonymous routes.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
