package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"fieldbook/backend/internal/apperr"
	authdomain "fieldbook/backend/internal/auth/domain"
	"fieldbook/backend/internal/policy/engine"
)

type fakeAuthenticator struct {
	valid string
	err   error
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, raw string) (*authdomain.Principal, error) {
	if f.err != nil {
		return nil, f.err
	}
	if raw != f.valid {
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	return &authdomain.Principal{UserID: "u1", Role: "USER", SessionID: "s1", TokenID: "jti"}, nil
}

type fakeEvaluator struct {
	allow bool
	err   error
	got   engine.Input
}

func (f *fakeEvaluator) Authorize(_ context.Context, in engine.Input) (bool, error) {
	f.got = in
	return f.allow, f.err
}

func principalEcho(t *testing.T, seen **authdomain.Principal) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = authdomain.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", ExtractToken(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "bearer   xyz ")
	assert.Equal(t, "xyz", ExtractToken(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(TokenHeader, "tok")
	assert.Equal(t, "tok", ExtractToken(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	assert.Equal(t, "", ExtractToken(r))
}

func TestRequireAuth(t *testing.T) {
	var seen *authdomain.Principal
	h := RequireAuth(&fakeAuthenticator{valid: "good"})(principalEcho(t, &seen))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/sessions", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, seen)

	r := httptest.NewRequest(http.MethodGet, "/api/auth/sessions", nil)
	r.Header.Set("Authorization", "Bearer bad")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	r = httptest.NewRequest(http.MethodGet, "/api/auth/sessions", nil)
	r.Header.Set(TokenHeader, "good")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	if assert.NotNil(t, seen) {
		assert.Equal(t, "u1", seen.UserID)
	}
}

func TestRequireAuth_StoreOutageIs503(t *testing.T) {
	var seen *authdomain.Principal
	auth := &fakeAuthenticator{err: apperr.Wrap(apperr.KindUnavailable, "blacklist unavailable", context.DeadlineExceeded)}
	h := RequireAuth(auth)(principalEcho(t, &seen))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer any")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequirePolicy(t *testing.T) {
	var seen *authdomain.Principal
	withPrincipal := func(r *http.Request) *http.Request {
		return r.WithContext(authdomain.WithPrincipal(r.Context(), &authdomain.Principal{UserID: "u1", Role: "USER"}))
	}

	deny := &fakeEvaluator{allow: false}
	rec := httptest.NewRecorder()
	RequirePolicy(deny)(principalEcho(t, &seen)).ServeHTTP(rec, withPrincipal(httptest.NewRequest(http.MethodGet, "/api/admin/users/u2/sessions", nil)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "ACCESS_DENIED")
	assert.Equal(t, engine.Input{UserID: "u1", Role: "USER", Method: http.MethodGet, Path: "/api/admin/users/u2/sessions"}, deny.got)

	allow := &fakeEvaluator{allow: true}
	rec = httptest.NewRecorder()
	RequirePolicy(allow)(principalEcho(t, &seen)).ServeHTTP(rec, withPrincipal(httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	broken := &fakeEvaluator{err: errors.New("eval failed")}
	rec = httptest.NewRecorder()
	RequirePolicy(broken)(principalEcho(t, &seen)).ServeHTTP(rec, withPrincipal(httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	RequirePolicy(allow)(principalEcho(t, &seen)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
