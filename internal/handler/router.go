package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/johndosdos/chatsync/internal"
	"github.com/johndosdos/chatsync/internal/chat"
	ratelimiter "github.com/johndosdos/chatsync/internal/rate_limiter"
)

// NewRouter wires every endpoint. limiter may be nil to disable per-IP
// throttling of mutations.
func NewRouter(hub *chat.Hub, limiter *ratelimiter.IPRateLimiter, wsLimit RateLimit) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", ServeHealth())

	r.Group(func(r chi.Router) {
		r.Use(internal.Middleware)

		r.Get("/messages", ServeMessages(hub))
		r.Get("/events", StreamSSE(hub))
		r.Get("/ws", ServeWs(hub, wsLimit))

		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter.Middleware)
			}
			r.Post("/messages", ServeCreate(hub))
			r.Put("/messages/{id}", ServeEdit(hub))
			r.Delete("/messages/{id}", ServeDelete(hub))
		})
	})

	return r
}
