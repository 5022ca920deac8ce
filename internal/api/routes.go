package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/wellness-planner/internal/identity"
)

// SetAllowedOrigins sets the origin patterns accepted by the chat socket.
func (h *Handler) SetAllowedOrigins(origins []string) {
	if len(origins) > 0 {
		h.origins = origins
	}
}

// RegisterRoutes registers the planner routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", h.Register)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(identity.Middleware(h.tokens))
			r.Get("/session", h.Export)
			r.Delete("/session/history", h.ClearHistory)
			r.Delete("/me", h.DeleteAccount)
			r.Post("/agent/chat", h.Chat)
		})
	})

	r.With(identity.Middleware(h.tokens)).Get("/ws/chat", h.ChatSocket)
}
