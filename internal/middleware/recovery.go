package middleware

import (
	"net/http"
	"runtime/debug"

	"mandoub-backend/internal/logger"
	"mandoub-backend/pkg/utils"
)

func PanicRecovery(next http.Handler) http.Handler {
	log := logger.For("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("panic", err).Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).Msg("panic recovered")
				utils.Error(w, http.StatusInternalServerError, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
