package domain

import "time"

// Entry marks an access token (by its jti) as rejected until the token would have expired anyway.
type Entry struct {
	TokenID       string    `json:"token_id"`
	BlacklistedAt time.Time `json:"blacklisted_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Reason        string    `json:"reason,omitempty"`
}

// IsExpired reports whether the entry no longer needs to be enforced at now.
func (e *Entry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
