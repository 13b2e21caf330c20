package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/apperrors"
	"github.com/mmeshcher/shortlinks/internal/service"
)

func (h *Handler) URLInfoHandler(rw http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "shortcode")

	rec, err := h.service.Lookup(r.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apperrors.URLNotFound(code).WriteJSON(rw)
			return
		}
		h.logger.Error("Failed to look up short URL", zap.String("shortcode", code), zap.Error(err))
		apperrors.Internal("").WriteJSON(rw)
		return
	}

	h.writeJSON(rw, http.StatusOK, rec)
}
