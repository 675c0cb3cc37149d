package telemetry

import (
	"context"
	"time"

	"fieldbook/backend/internal/logging"
	"fieldbook/backend/internal/telemetry/domain"
)

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the HTTP server stops before shutting down
// the producers, so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
//
// emitter and event may be nil; EmitAsync then returns without starting a goroutine.
// The goroutine detaches from ctx cancellation so a finished request does not abort the emit.
func EmitAsync(ctx context.Context, emitter EventEmitter, log logging.Logger, event *domain.Event) {
	if emitter == nil || event == nil {
		return
	}
	if log == nil {
		log = logging.Nop()
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Warn(emitCtx, "telemetry: async emit failed", "event_type", event.Type, "error", err)
		}
	}()
}
