package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/apperrors"
)

// Recovery turns a panic into a 500 JSON error and logs it with the stack.
func Recovery(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("Panic recovered",
						zap.String("requestID", GetRequestID(r.Context())),
						zap.Any("panic", rec),
						zap.Stack("stack"),
					)
					apperrors.Internal("").WriteJSON(w)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
