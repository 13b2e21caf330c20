package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/apperrors"
)

func (h *Handler) StatsHandler(rw http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("Failed to build stats", zap.Error(err))
		apperrors.Internal("").WriteJSON(rw)
		return
	}

	h.writeJSON(rw, http.StatusOK, stats)
}
