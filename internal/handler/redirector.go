package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/apperrors"
	"github.com/mmeshcher/shortlinks/internal/service"
)

// RedirectHandler sends valid codes to their long URL. Unknown codes go back home and
// expired ones go home with the code in ?expired=.
func (h *Handler) RedirectHandler(rw http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "shortcode")

	rec, err := h.service.Resolve(r.Context(), code, r.Referer())
	switch {
	case err == nil:
		rw.Header().Set("Location", rec.LongURL)
		rw.WriteHeader(http.StatusTemporaryRedirect)
	case errors.Is(err, service.ErrExpired):
		rw.Header().Set("Location", "/?expired="+url.QueryEscape(code))
		rw.WriteHeader(http.StatusFound)
	case errors.Is(err, service.ErrNotFound):
		rw.Header().Set("Location", "/")
		rw.WriteHeader(http.StatusFound)
	default:
		h.logger.Error("Failed to resolve short URL", zap.String("shortcode", code), zap.Error(err))
		apperrors.Internal("").WriteJSON(rw)
	}
}
