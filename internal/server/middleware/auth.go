package middleware

import (
	"context"
	"net/http"
	"strings"

	"fieldbook/backend/internal/apperr"
	authdomain "fieldbook/backend/internal/auth/domain"
	"fieldbook/backend/internal/policy/engine"
	"fieldbook/backend/internal/server/httpx"
)

const bearerPrefix = "bearer "

// TokenHeader is the alternative header carrying a raw access token.
const TokenHeader = "Token"

// Authenticator resolves a raw access token to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*authdomain.Principal, error)
}

// RequireAuth authenticates the Bearer or Token header and stores the principal in the context.
// Requests without a usable token get the Unauthorized envelope.
func RequireAuth(auth Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ExtractToken(r)
			if raw == "" {
				httpx.WriteError(w, r, apperr.Unauthorized("missing or invalid authorization"))
				return
			}
			p, err := auth.Authenticate(r.Context(), raw)
			if err != nil {
				httpx.WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(authdomain.WithPrincipal(r.Context(), p)))
		})
	}
}

// ExtractToken returns the Bearer token from Authorization, falling back to the Token header.
func ExtractToken(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("Authorization")); len(v) > len(bearerPrefix) &&
		strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(v[len(bearerPrefix):])
	}
	return strings.TrimSpace(r.Header.Get(TokenHeader))
}

// RequirePolicy asks the policy engine whether the authenticated principal may call the route.
// It must run after RequireAuth.
func RequirePolicy(ev engine.Evaluator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := authdomain.PrincipalFrom(r.Context())
			if p == nil {
				httpx.WriteError(w, r, apperr.Unauthorized("missing or invalid authorization"))
				return
			}
			allowed, err := ev.Authorize(r.Context(), engine.Input{
				UserID: p.UserID,
				Role:   p.Role,
				Method: r.Method,
				Path:   r.URL.Path,
			})
			if err != nil {
				httpx.WriteError(w, r, apperr.Wrap(apperr.KindInternal, "policy evaluation failed", err))
				return
			}
			if !allowed {
				httpx.WriteError(w, r, apperr.AccessDenied("access denied"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
