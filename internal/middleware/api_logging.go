package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"mandoub-backend/internal/logger"
)

// RequestLogger writes one structured line per request. Health and metrics
// probes are logged at debug level.
func RequestLogger(next http.Handler) http.Handler {
	log := logger.For("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		var event *zerolog.Event
		switch {
		case isProbe(r.URL.Path):
			event = log.Debug()
		case wrapped.statusCode >= 500:
			event = log.Error()
		case wrapped.statusCode >= 400:
			event = log.Warn()
		default:
			event = log.Info()
		}
		event.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Int("bytes", wrapped.bytesWritten).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

func isProbe(path string) bool {
	switch path {
	case "/health", "/api/health", "/health/ready", "/health/detailed", "/metrics":
		return true
	}
	return false
}
