package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"fieldbook/backend/internal/telemetry"
	"fieldbook/backend/internal/telemetry/domain"
)

const instrumentationName = "fieldbook.auth"

// recordEmitter is the part of otellog.Logger the adapter needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider
// and counts them on an "auth.events" counter from meters. If provider is nil, returns a no-op emitter.
// meters may be nil.
func NewEventEmitter(provider *sdklog.LoggerProvider, meters metric.MeterProvider) (telemetry.EventEmitter, error) {
	if provider == nil {
		return noopEmitter{}, nil
	}
	em := &otelEmitter{logger: provider.Logger(instrumentationName)}
	if meters != nil {
		counter, err := meters.Meter(instrumentationName).Int64Counter("auth.events",
			metric.WithDescription("Security events emitted by the auth service"))
		if err != nil {
			return nil, err
		}
		em.counter = counter
	}
	return em, nil
}

// NewEventEmitterWithLogger wraps a bare record emitter; used in tests.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger  recordEmitter
	counter metric.Int64Counter
}

// Emit converts the event to an OTel log record and emits it.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetSeverity(otellog.SeverityInfo)
	if event.Type == domain.EventRefreshReuseDetected {
		rec.SetSeverity(otellog.SeverityWarn)
	}
	if len(event.Metadata) > 0 {
		rec.SetBody(otellog.BytesValue(event.Metadata))
	}
	for _, kv := range []struct{ k, v string }{
		{"event_id", event.ID},
		{"event_type", event.Type},
		{"user_id", event.UserID},
		{"session_id", event.SessionID},
		{"ip", event.IP},
		{"source", event.Source},
	} {
		if kv.v != "" {
			rec.AddAttributes(otellog.String(kv.k, kv.v))
		}
	}
	e.logger.Emit(ctx, rec)
	if e.counter != nil {
		e.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", event.Type)))
	}
	return nil
}
