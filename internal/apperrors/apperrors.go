package apperrors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// AppError is an error that knows how to render itself as an HTTP response.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func (e *AppError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: e})
}

func BadRequest(message string) *AppError {
	return &AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func InvalidJSON(details string) *AppError {
	return &AppError{
		Code:       "INVALID_JSON",
		Message:    "Invalid JSON in request body",
		Details:    details,
		StatusCode: http.StatusBadRequest,
	}
}

func UnsupportedContentType(want string) *AppError {
	return &AppError{
		Code:       "UNSUPPORTED_CONTENT_TYPE",
		Message:    fmt.Sprintf("Content-Type must be %s", want),
		StatusCode: http.StatusBadRequest,
	}
}

func MissingField(field string) *AppError {
	return &AppError{
		Code:       "MISSING_FIELD",
		Message:    fmt.Sprintf("Required field '%s' is missing", field),
		StatusCode: http.StatusBadRequest,
	}
}

// Row wraps a per-row shortening failure. Collisions are conflicts, the rest are bad input.
func Row(code, message string) *AppError {
	status := http.StatusBadRequest
	if code == "SHORTCODE_TAKEN" {
		status = http.StatusConflict
	}
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: status,
	}
}

func URLNotFound(code string) *AppError {
	return &AppError{
		Code:       "URL_NOT_FOUND",
		Message:    fmt.Sprintf("Short URL '%s' not found", code),
		StatusCode: http.StatusNotFound,
	}
}

func NotFound() *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}
}

func MethodNotAllowed() *AppError {
	return &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "Method not allowed",
		StatusCode: http.StatusMethodNotAllowed,
	}
}

func Internal(details string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An internal server error occurred",
		Details:    details,
		StatusCode: http.StatusInternalServerError,
	}
}

func StorageUnavailable() *AppError {
	return &AppError{
		Code:       "STORAGE_UNAVAILABLE",
		Message:    "Storage is unavailable",
		StatusCode: http.StatusInternalServerError,
	}
}
