package server

import (
	"net/http"

	"github.com/cloo-solutions/companion/internal/api"
	"github.com/cloo-solutions/companion/internal/api/handlers"
	"github.com/cloo-solutions/companion/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	// AuthValidator is optional. When nil every route is public.
	AuthValidator    middleware.AuthValidator
	AssistantHandler *handlers.AssistantHandler
	ProfileHandler   *handlers.ProfileHandler
	IndexHandler     *handlers.IndexHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if cfg.AuthValidator != nil {
			r.Use(middleware.APIKeyAuth(cfg.AuthValidator))
		}
		r.Use(middleware.RequireJSON)

		r.Post("/ask", cfg.AssistantHandler.Ask)
		r.Get("/history", cfg.AssistantHandler.History)
		r.Delete("/history", cfg.AssistantHandler.ClearHistory)

		r.Get("/profile", cfg.ProfileHandler.Get)
		r.Put("/profile", cfg.ProfileHandler.Put)

		r.Post("/index/rebuild", cfg.IndexHandler.Rebuild)
		r.Get("/search", cfg.IndexHandler.Search)
		r.Get("/stats", cfg.IndexHandler.Stats)
		r.Post("/cache/invalidate", cfg.IndexHandler.InvalidateCache)
	})

	return r
}
