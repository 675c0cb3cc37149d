package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNewEvent_IDEncodesTimestamp(t *testing.T) {
	at := time.Date(2026, 7, 4, 9, 30, 0, 0, time.UTC)
	ev := NewEvent(EventLogin, "u1", "s1", at)

	id, err := ulid.ParseStrict(ev.ID)
	if err != nil {
		t.Fatalf("ParseStrict(%q): %v", ev.ID, err)
	}
	if !ulid.Time(id.Time()).Equal(at) {
		t.Errorf("ulid time = %v, want %v", ulid.Time(id.Time()), at)
	}
	if ev.Source != SourceAuthService {
		t.Errorf("source = %q", ev.Source)
	}
}

func TestEvent_JSONShape(t *testing.T) {
	ev := NewEvent(EventLoginFailure, "", "", time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC))
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if m["eventType"] != EventLoginFailure {
		t.Errorf("eventType = %v", m["eventType"])
	}
	if _, ok := m["userId"]; ok {
		t.Error("empty userId should be omitted")
	}
	if m["createdAt"] != "2026-07-04T00:00:00Z" {
		t.Errorf("createdAt = %v", m["createdAt"])
	}
}
