package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/apperrors"
	"github.com/mmeshcher/shortlinks/internal/service"
	"github.com/mmeshcher/shortlinks/internal/shortcode"
)

const serviceName = "shortlinks"

type Handler struct {
	service *service.ShortenerService
	logger  *zap.Logger
}

func NewHandler(service *service.ShortenerService, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	if err := json.NewEncoder(rw).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// writeShortenError maps a shortening failure to its HTTP response.
func (h *Handler) writeShortenError(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shortcode.ErrInvalidURL),
		errors.Is(err, shortcode.ErrInvalidShortcode),
		errors.Is(err, shortcode.ErrShortcodeTaken),
		errors.Is(err, shortcode.ErrShortcodeExhausted):
		rowErr := service.RowError(err)
		apperrors.Row(rowErr.Code, rowErr.Message).WriteJSON(rw)
	case errors.Is(err, shortcode.ErrEmptyBatch),
		errors.Is(err, shortcode.ErrBatchTooLarge):
		apperrors.BadRequest(err.Error()).WriteJSON(rw)
	default:
		h.logger.Error("Failed to shorten URL", zap.Error(err))
		apperrors.Internal("").WriteJSON(rw)
	}
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
