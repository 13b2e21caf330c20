package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/apperrors"
)

func (h *Handler) PingHandler(rw http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Error("Storage ping failed", zap.Error(err))
		apperrors.StorageUnavailable().WriteJSON(rw)
		return
	}

	rw.WriteHeader(http.StatusOK)
}
