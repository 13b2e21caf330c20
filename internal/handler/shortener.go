package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/mmeshcher/shortlinks/internal/apperrors"
	"github.com/mmeshcher/shortlinks/internal/models"
)

// ShortenHandler takes a bare long URL as text and answers with the bare short URL.
func (h *Handler) ShortenHandler(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()

	longURL := strings.TrimSpace(string(body))
	if err != nil || longURL == "" {
		apperrors.BadRequest("Empty body").WriteJSON(rw)
		return
	}

	rec, err := h.service.CreateShortURL(r.Context(), models.ShortenRequest{LongURL: longURL})
	if err != nil {
		h.writeShortenError(rw, err)
		return
	}

	rw.Header().Set("Content-Type", "text/plain")
	rw.WriteHeader(http.StatusCreated)
	rw.Write([]byte(rec.ShortURL))
}
