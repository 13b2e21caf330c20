package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mmeshcher/shortlinks/internal/apperrors"
	"github.com/mmeshcher/shortlinks/internal/models"
)

// ShortenBatchHandler answers 201 when at least one row was created and 400 otherwise.
// The body always carries the per-row results.
func (h *Handler) ShortenBatchHandler(rw http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		apperrors.UnsupportedContentType("application/json").WriteJSON(rw)
		return
	}

	var batch []models.ShortenRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&batch); err != nil {
		apperrors.InvalidJSON(err.Error()).WriteJSON(rw)
		return
	}

	resp, err := h.service.ShortenBatch(r.Context(), batch)
	if err != nil {
		h.writeShortenError(rw, err)
		return
	}

	status := http.StatusCreated
	if resp.Created == 0 {
		status = http.StatusBadRequest
	}
	h.writeJSON(rw, status, resp)
}
