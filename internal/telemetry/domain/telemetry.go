package domain

import (
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event types emitted by the auth engine. They mirror the audit actions.
const (
	EventRegister             = "register"
	EventLogin                = "login"
	EventLoginFailure         = "login_failure"
	EventRefresh              = "refresh"
	EventRefreshReuseDetected = "refresh_reuse_detected"
	EventLogout               = "logout"
	EventLogoutAll            = "logout_all"
	EventSessionTerminated    = "session_terminated"
)

// SourceAuthService tags events produced by the HTTP auth service.
const SourceAuthService = "auth-service"

// Event is a security event. The JSON form is the Kafka message value
// and the line shipped to Loki.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"eventType"`
	UserID    string          `json:"userId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	IP        string          `json:"ip,omitempty"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewEvent returns an event stamped with a ULID derived from at, so ids sort by time.
func NewEvent(eventType, userID, sessionID string, at time.Time) *Event {
	return &Event{
		ID:        ulid.MustNew(ulid.Timestamp(at), rand.Reader).String(),
		Type:      eventType,
		UserID:    userID,
		SessionID: sessionID,
		Source:    SourceAuthService,
		CreatedAt: at,
	}
}
