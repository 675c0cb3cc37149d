package domain

import "time"

// Actions recorded by the auth engine.
const (
	ActionRegister             = "register"
	ActionLogin                = "login"
	ActionLoginFailure         = "login_failure"
	ActionRefresh              = "refresh"
	ActionRefreshReuseDetected = "refresh_reuse_detected"
	ActionLogout               = "logout"
	ActionLogoutAll            = "logout_all"
	ActionSessionTerminated    = "session_terminated"
)

// AuditLog represents an audit event. UserID is empty when the actor is unknown
// (e.g. a login attempt for an unregistered email).
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
