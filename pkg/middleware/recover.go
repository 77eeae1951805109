package middleware

import (
	"net/http"

	"cinema-ticketing/pkg/utils"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Recover turns a handler panic into a 500 response
func Recover(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("PANIC recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
						zap.String("request_id", chimw.GetReqID(r.Context())),
						zap.Stack("stack"),
					)

					utils.ResponseInternalError(w, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
