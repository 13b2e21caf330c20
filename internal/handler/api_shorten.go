package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mmeshcher/shortlinks/internal/apperrors"
	"github.com/mmeshcher/shortlinks/internal/models"
)

func (h *Handler) APIShortenHandler(rw http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		apperrors.UnsupportedContentType("application/json").WriteJSON(rw)
		return
	}

	var req models.ShortenRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		apperrors.InvalidJSON(err.Error()).WriteJSON(rw)
		return
	}

	if req.LongURL == "" {
		apperrors.MissingField("longUrl").WriteJSON(rw)
		return
	}

	rec, err := h.service.CreateShortURL(r.Context(), req)
	if err != nil {
		h.writeShortenError(rw, err)
		return
	}

	h.writeJSON(rw, http.StatusCreated, rec)
}
