package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mmeshcher/shortlinks/internal/apperrors"
	"github.com/mmeshcher/shortlinks/internal/middleware"
)

func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Recovery(h.logger))
	r.Use(chimiddleware.CleanPath)
	r.Use(middleware.GzipMiddleware)

	r.Get("/", h.HomeHandler)
	r.Post("/", h.ShortenHandler)
	r.Get("/ping", h.PingHandler)
	r.Get("/stats", h.StatsHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/shorten", h.APIShortenHandler)
		r.Post("/shorten/batch", h.ShortenBatchHandler)
		r.Get("/urls/{shortcode}", h.URLInfoHandler)
	})

	r.Get("/{shortcode}", h.RedirectHandler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperrors.NotFound().WriteJSON(w)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperrors.MethodNotAllowed().WriteJSON(w)
	})

	return r
}
