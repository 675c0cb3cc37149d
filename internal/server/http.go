package server

import (
	"net/http"
	"time"

	authhandler "fieldbook/backend/internal/auth/handler"
	healthhandler "fieldbook/backend/internal/health/handler"
	"fieldbook/backend/internal/logging"
	"fieldbook/backend/internal/server/middleware"
)

// HTTPDeps are the pieces mounted on the HTTP router. Nil handlers are skipped.
type HTTPDeps struct {
	Auth    *authhandler.Handler
	Guards  authhandler.Guards
	Health  *healthhandler.HTTP
	Metrics *middleware.Metrics
	Log     logging.Logger
}

// NewRouter mounts every route and wraps the mux with client IP capture, request logging and
// metrics, outermost first.
func NewRouter(d HTTPDeps) http.Handler {
	mux := http.NewServeMux()
	if d.Auth != nil {
		d.Auth.Register(mux, d.Guards)
	}
	if d.Health != nil {
		d.Health.Register(mux)
	}
	mws := []middleware.Middleware{middleware.ClientIP, middleware.RequestLog(d.Log)}
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
		mws = append(mws, d.Metrics.Instrument)
	}
	return middleware.Chain(mux, mws...)
}

// NewHTTPServer returns an http.Server with conservative timeouts.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
