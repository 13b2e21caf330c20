package handler

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/apperrors"
	"github.com/mmeshcher/shortlinks/internal/models"
)

func (h *Handler) HomeHandler(rw http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), "")
	if err != nil {
		h.logger.Error("Failed to load totals", zap.Error(err))
		apperrors.Internal("").WriteJSON(rw)
		return
	}

	resp := models.HomeResponse{
		Service:     serviceName,
		TotalURLs:   stats.TotalURLs,
		TotalClicks: stats.TotalClicks,
	}
	if code := r.URL.Query().Get("expired"); code != "" {
		resp.Notice = fmt.Sprintf("Short URL '%s' has expired", code)
	}

	h.writeJSON(rw, http.StatusOK, resp)
}
