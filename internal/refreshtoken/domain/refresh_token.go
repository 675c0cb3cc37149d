package domain

import "time"

// RefreshToken is the persisted record of an issued refresh secret. The secret itself is never
// stored; TokenHash is its SHA-256 digest. Every record descending from one login shares SessionID.
type RefreshToken struct {
	TokenHash  string
	UserID     string
	SessionID  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastUsedAt *time.Time
	Revoked    bool
	RevokedAt  *time.Time
	DeviceInfo string
	IPAddress  string
}

// IsExpired reports whether the record's lifetime has ended at now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsValid reports whether the record can still be exchanged at now.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}
