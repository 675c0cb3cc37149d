package handler

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"fieldbook/backend/internal/logging"
)

// ServiceName is reported next to the overall ("") status.
const ServiceName = "fieldbook.auth.v1.AuthService"

// NewGRPCHealth returns a health server that starts NOT_SERVING until the first sync.
func NewGRPCHealth() *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// Sync runs the checker once and publishes the result to hs.
func Sync(ctx context.Context, hs *health.Server, checker *Checker) Report {
	rep := checker.Run(ctx)
	status := healthpb.HealthCheckResponse_SERVING
	if !rep.Ready {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
	return rep
}

// RunSync publishes readiness every interval until ctx is done, then marks everything
// NOT_SERVING so load balancers drain before the server stops.
func RunSync(ctx context.Context, hs *health.Server, checker *Checker, interval time.Duration, log logging.Logger) {
	if log == nil {
		log = logging.Nop()
	}
	ready := true
	publish := func() {
		rep := Sync(ctx, hs, checker)
		if rep.Ready != ready {
			log.Info(ctx, "readiness changed", "ready", rep.Ready, "checks", rep.Results)
			ready = rep.Ready
		}
	}
	publish()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			publish()
		}
	}
}
