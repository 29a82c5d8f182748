package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wildguard-ai/wildguard/internal/api"
	"github.com/wildguard-ai/wildguard/internal/api/handlers"
	"github.com/wildguard-ai/wildguard/internal/api/middleware"
)

type RouterConfig struct {
	ChatHandler *handlers.ChatHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 64 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/chat", func(r chi.Router) {
		r.Get("/state", cfg.ChatHandler.State)
		r.Get("/messages", cfg.ChatHandler.ListMessages)
		r.Post("/messages", cfg.ChatHandler.SendMessage)
		r.Post("/reset", cfg.ChatHandler.Reset)
	})

	return r
}
