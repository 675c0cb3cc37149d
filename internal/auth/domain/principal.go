package domain

import (
	"context"
	"time"
)

// Principal is the caller identified by a verified, non-blocked access token.
type Principal struct {
	UserID    string
	Role      string
	SessionID string
	// TokenID is the access token's jti; blocking it kills the token before ExpiresAt.
	TokenID   string
	ExpiresAt time.Time
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal set by the auth middleware, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
