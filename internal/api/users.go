package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/ashureev/wellness-planner/internal/domain"
	"github.com/ashureev/wellness-planner/internal/identity"
)

// RegisterRequest is the body of POST /api/users.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"required_with=Email,max=72"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginResponse carries an issued bearer token.
type LoginResponse struct {
	Token     string    `json:"token"`
	UID       int64     `json:"uid"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Register creates an identity and its empty session and issues a token.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow("ip:" + identity.IPFromRequest(r)) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.coord.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// A new identity is signed in right away so email-less users can chat.
	token, expiresAt, err := h.tokens.Issue(s.UID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, LoginResponse{Token: token, UID: s.UID, Name: s.Name, ExpiresAt: expiresAt})
}

// Login authenticates an email identity and issues a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow("ip:" + identity.IPFromRequest(r)) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.coord.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		// Unknown identities and bad credentials look the same to the client.
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidCredential) {
			Error(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.fail(w, r, err)
		return
	}

	token, expiresAt, err := h.tokens.Issue(s.UID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, LoginResponse{Token: token, UID: s.UID, Name: s.Name, ExpiresAt: expiresAt})
}

// Export returns the caller's session projection.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	exp, err := h.coord.Export(r.Context(), uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, exp)
}

// ClearHistory empties the caller's conversation history.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.coord.ClearHistory(r.Context(), uid); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount removes the caller's identity and session and revokes their tokens.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.coord.DeleteAccount(r.Context(), uid); err != nil {
		h.fail(w, r, err)
		return
	}
	h.tokens.RevokeUser(uid)
	w.WriteHeader(http.StatusNoContent)
}
