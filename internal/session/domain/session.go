package domain

import "time"

// Session is one login of a user on a device. Token identifies it and is shared by every refresh
// token descending from that login.
type Session struct {
	Token        string
	UserID       string
	DeviceInfo   string
	IPAddress    string
	UserAgent    string
	Location     string // optional
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
	Active       bool
}

// IsExpired reports whether the session's lifetime has ended at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsValid reports whether the session is active and unexpired at now.
func (s *Session) IsValid(now time.Time) bool {
	return s.Active && !s.IsExpired(now)
}
