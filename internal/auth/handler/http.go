// Package handler exposes the auth service over HTTP (/api/auth and /api/admin).
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"fieldbook/backend/internal/apperr"
	authdomain "fieldbook/backend/internal/auth/domain"
	authsvc "fieldbook/backend/internal/auth/service"
	"fieldbook/backend/internal/logging"
	"fieldbook/backend/internal/security"
	"fieldbook/backend/internal/server/httpx"
	"fieldbook/backend/internal/server/middleware"
	sessiondomain "fieldbook/backend/internal/session/domain"
	userdomain "fieldbook/backend/internal/user/domain"
)

const (
	// AuthCookie carries the access token for browser clients.
	AuthCookie = "AuthToken"
	tokenType  = "Bearer"
)

// AuthService is what the handler needs from the auth service.
type AuthService interface {
	Register(ctx context.Context, in authsvc.RegisterInput) (*userdomain.User, error)
	Login(ctx context.Context, in authsvc.LoginInput) (*authsvc.LoginResult, error)
	Refresh(ctx context.Context, in authsvc.RefreshInput) (*authsvc.TokenPair, error)
	Logout(ctx context.Context, sessionToken string) error
	LogoutAll(ctx context.Context, userID string) error
	InvalidateAccessToken(ctx context.Context, p *authdomain.Principal, reason string) error
	Authenticate(ctx context.Context, raw string) (*authdomain.Principal, error)
	ListSessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	TerminateSession(ctx context.Context, userID, sessionToken string) error
}

// Guards are the middleware applied to route groups. Nil entries are skipped.
type Guards struct {
	// RateLimit wraps register, login and refresh.
	RateLimit middleware.Middleware
	// Auth wraps every route that needs a principal.
	Auth middleware.Middleware
	// Admin runs after Auth on /api/admin routes.
	Admin middleware.Middleware
}

// Handler serves the auth endpoints.
type Handler struct {
	svc          AuthService
	cookieSecure bool
	log          logging.Logger
}

// NewHandler returns a Handler. cookieSecure sets the Secure flag on the AuthToken cookie.
func NewHandler(svc AuthService, cookieSecure bool, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{svc: svc, cookieSecure: cookieSecure, log: log.With("component", "auth_http")}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux, g Guards) {
	public := func(f http.HandlerFunc) http.Handler { return chain(f, g.RateLimit) }
	authed := func(f http.HandlerFunc) http.Handler { return chain(f, g.Auth) }
	admin := func(f http.HandlerFunc) http.Handler { return chain(f, g.Auth, g.Admin) }

	mux.Handle("POST /api/auth/register", public(h.register))
	mux.Handle("POST /api/auth/login", public(h.login))
	mux.Handle("POST /api/auth/refresh", public(h.refresh))
	mux.HandleFunc("GET /api/auth/validate-token", h.validateToken)

	mux.Handle("POST /api/auth/logout", authed(h.logout))
	mux.Handle("POST /api/auth/logout-all", authed(h.logoutAll))
	mux.Handle("GET /api/auth/sessions", authed(h.listSessions))
	mux.Handle("DELETE /api/auth/sessions/{token}", authed(h.terminateSession))

	mux.Handle("GET /api/admin/users/{userID}/sessions", admin(h.adminListSessions))
	mux.Handle("POST /api/admin/users/{userID}/logout-all", admin(h.adminLogoutAll))
}

func chain(h http.Handler, mws ...middleware.Middleware) http.Handler {
	var set []middleware.Middleware
	for _, m := range mws {
		if m != nil {
			set = append(set, m)
		}
	}
	return middleware.Chain(h, set...)
}

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceInfo string `json:"deviceInfo,omitempty"`
	Location   string `json:"location,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	DeviceInfo   string `json:"deviceInfo,omitempty"`
}

type userView struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type tokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType"`
	ExpiresIn    int64     `json:"expiresIn"`
	ExpiresAt    time.Time `json:"expiresAt"`
	SessionToken string    `json:"sessionToken"`
	User         *userView `json:"user,omitempty"`
}

type sessionView struct {
	SessionToken string    `json:"sessionToken"`
	DeviceInfo   string    `json:"deviceInfo"`
	IPAddress    string    `json:"ipAddress"`
	UserAgent    string    `json:"userAgent,omitempty"`
	Location     string    `json:"location,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Current      bool      `json:"current"`
}

func toUserView(u *userdomain.User) *userView {
	if u == nil {
		return nil
	}
	return &userView{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func toTokenResponse(p *authsvc.TokenPair, u *userdomain.User) tokenResponse {
	return tokenResponse{
		AccessToken:  p.Access.Raw,
		RefreshToken: p.RefreshToken,
		TokenType:    tokenType,
		ExpiresIn:    int64(p.Access.ExpiresAt.Sub(p.Access.IssuedAt).Seconds()),
		ExpiresAt:    p.Access.ExpiresAt,
		SessionToken: p.SessionToken,
		User:         toUserView(u),
	}
}

func toSessionViews(list []*sessiondomain.Session, current string) []sessionView {
	out := make([]sessionView, 0, len(list))
	for _, s := range list {
		out = append(out, sessionView{
			SessionToken: s.Token,
			DeviceInfo:   s.DeviceInfo,
			IPAddress:    s.IPAddress,
			UserAgent:    s.UserAgent,
			Location:     s.Location,
			CreatedAt:    s.CreatedAt,
			LastActivity: s.LastActivity,
			ExpiresAt:    s.ExpiresAt,
			Current:      s.Token == current,
		})
	}
	return out
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindInternal:
		h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	case apperr.KindUnavailable:
		h.log.Warn(r.Context(), "store unavailable", "path", r.URL.Path, "error", err)
	}
	httpx.WriteError(w, r, err)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.svc.Register(r.Context(), authsvc.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toUserView(u))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	deviceInfo := req.DeviceInfo
	if deviceInfo == "" {
		deviceInfo = r.UserAgent()
	}
	res, err := h.svc.Login(r.Context(), authsvc.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		DeviceInfo: deviceInfo,
		IPAddress:  middleware.ClientIPFromContext(r.Context()),
		UserAgent:  r.UserAgent(),
		Location:   req.Location,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.deliverAccessToken(w, res.Access)
	httpx.WriteJSON(w, http.StatusOK, toTokenResponse(&res.TokenPair, res.User))
}

// deliverAccessToken sets the Token header and the AuthToken cookie. The cookie lives exactly as
// long as the token.
func (h *Handler) deliverAccessToken(w http.ResponseWriter, tok security.AccessToken) {
	w.Header().Set(middleware.TokenHeader, tok.Raw)
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookie,
		Value:    tok.Raw,
		Path:     "/",
		MaxAge:   int(tok.ExpiresAt.Sub(tok.IssuedAt).Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		h.fail(w, r, apperr.Validation(map[string][]string{"refreshToken": {"must not be blank"}}))
		return
	}
	pair, err := h.svc.Refresh(r.Context(), authsvc.RefreshInput{
		Secret:     req.RefreshToken,
		DeviceInfo: req.DeviceInfo,
		IPAddress:  middleware.ClientIPFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.deliverAccessToken(w, pair.Access)
	httpx.WriteJSON(w, http.StatusOK, toTokenResponse(pair, nil))
}

// validateToken answers 200 "valid" only when the Token header authenticates and a token cookie
// accompanies it: 401 without the cookie, 406 for a bad token.
func (h *Handler) validateToken(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.Header.Get(middleware.TokenHeader))
	if raw == "" || !hasTokenCookie(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if _, err := h.svc.Authenticate(r.Context(), raw); err != nil {
		if apperr.KindOf(err) == apperr.KindUnavailable {
			h.fail(w, r, err)
			return
		}
		http.Error(w, "invalid token", http.StatusNotAcceptable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("valid"))
}

func hasTokenCookie(r *http.Request) bool {
	for _, name := range []string{middleware.TokenHeader, AuthCookie} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return true
		}
	}
	return false
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	p := authdomain.PrincipalFrom(r.Context())
	if p == nil {
		h.fail(w, r, apperr.Unauthorized("missing or invalid authorization"))
		return
	}
	if p.SessionID != "" {
		if err := h.svc.Logout(r.Context(), p.SessionID); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if err := h.svc.InvalidateAccessToken(r.Context(), p, "logout"); err != nil {
		h.fail(w, r, err)
		return
	}
	h.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	p := authdomain.PrincipalFrom(r.Context())
	if p == nil {
		h.fail(w, r, apperr.Unauthorized("missing or invalid authorization"))
		return
	}
	if err := h.svc.LogoutAll(r.Context(), p.UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.InvalidateAccessToken(r.Context(), p, "logout_all"); err != nil {
		h.fail(w, r, err)
		return
	}
	h.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
	})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	p := authdomain.PrincipalFrom(r.Context())
	if p == nil {
		h.fail(w, r, apperr.Unauthorized("missing or invalid authorization"))
		return
	}
	list, err := h.svc.ListSessions(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSessionViews(list, p.SessionID))
}

func (h *Handler) terminateSession(w http.ResponseWriter, r *http.Request) {
	p := authdomain.PrincipalFrom(r.Context())
	if p == nil {
		h.fail(w, r, apperr.Unauthorized("missing or invalid authorization"))
		return
	}
	if err := h.svc.TerminateSession(r.Context(), p.UserID, r.PathValue("token")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListSessions(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSessionViews(list, ""))
}

func (h *Handler) adminLogoutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.LogoutAll(r.Context(), r.PathValue("userID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
