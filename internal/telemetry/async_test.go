package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fieldbook/backend/internal/telemetry/domain"
)

type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.Event
	emitErr error
	done    chan struct{}
}

func newMockEmitter(buffer int) *mockEventEmitter {
	return &mockEventEmitter{done: make(chan struct{}, buffer)}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.Event) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Event(nil), m.events...)
}

func waitFor(t *testing.T, done <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for emit %d/%d", i+1, n)
		}
	}
}

func TestEmitAsync_NilEmitterOrEvent(t *testing.T) {
	EmitAsync(context.Background(), nil, nil, &domain.Event{Type: domain.EventLogin})

	emitter := newMockEmitter(1)
	EmitAsync(context.Background(), emitter, nil, nil)
	time.Sleep(10 * time.Millisecond)
	if got := len(emitter.getEvents()); got != 0 {
		t.Errorf("expected 0 events, got %d", got)
	}
}

func TestEmitAsync_SurvivesCanceledRequest(t *testing.T) {
	emitter := newMockEmitter(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	EmitAsync(ctx, emitter, nil, domain.NewEvent(domain.EventLogout, "user-1", "s1", time.Now()))
	waitFor(t, emitter.done, 1)

	events := emitter.getEvents()
	if len(events) != 1 || events[0].UserID != "user-1" {
		t.Fatalf("events = %+v", events)
	}
}

func TestEmitAsync_ErrorIsSwallowed(t *testing.T) {
	emitter := newMockEmitter(1)
	emitter.emitErr = errors.New("kafka down")
	EmitAsync(context.Background(), emitter, nil, &domain.Event{Type: domain.EventLogin})
	waitFor(t, emitter.done, 1)
}

func TestEmitAsync_Concurrent(t *testing.T) {
	emitter := newMockEmitter(10)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(context.Background(), emitter, nil, &domain.Event{Type: domain.EventRefresh})
		}()
	}
	wg.Wait()
	waitFor(t, emitter.done, 10)
	if got := len(emitter.getEvents()); got != 10 {
		t.Errorf("expected 10 events, got %d", got)
	}
}

func TestFanout_EmitsToAllAndJoinsErrors(t *testing.T) {
	ok := newMockEmitter(1)
	bad := newMockEmitter(1)
	bad.emitErr = errors.New("boom")

	err := Fanout{ok, nil, bad}.Emit(context.Background(), &domain.Event{Type: domain.EventLogin})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(ok.getEvents()) != 1 || len(bad.getEvents()) != 1 {
		t.Error("every emitter should receive the event")
	}
}
