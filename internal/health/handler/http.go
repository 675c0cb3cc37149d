package handler

import (
	"net/http"

	"fieldbook/backend/internal/server/httpx"
)

// HTTP serves /healthz and /readyz.
type HTTP struct {
	checker *Checker
}

// NewHTTP returns the probe handlers. A nil checker makes readiness equal liveness.
func NewHTTP(checker *Checker) *HTTP {
	if checker == nil {
		checker = NewChecker(0)
	}
	return &HTTP{checker: checker}
}

// Register mounts the probes on mux.
func (h *HTTP) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.live)
	mux.HandleFunc("GET /readyz", h.ready)
}

func (h *HTTP) live(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTP) ready(w http.ResponseWriter, r *http.Request) {
	rep := h.checker.Run(r.Context())
	status := http.StatusOK
	if !rep.Ready {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, rep)
}
