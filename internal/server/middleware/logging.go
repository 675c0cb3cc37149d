package middleware

import (
	"net/http"
	"time"

	"fieldbook/backend/internal/logging"
)

// RequestLog logs method, path, status and duration of every request. Health probes log at debug.
func RequestLog(log logging.Logger) Middleware {
	if log == nil {
		log = logging.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.code,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", ClientIPFromContext(r.Context()),
			}
			switch {
			case r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics":
				log.Debug(r.Context(), "http request", args...)
			case sw.code >= http.StatusInternalServerError:
				log.Error(r.Context(), "http request", args...)
			default:
				log.Info(r.Context(), "http request", args...)
			}
		})
	}
}
