// Package service implements the auth engine: login, refresh-token rotation with reuse detection,
// logout and access-token authentication. It owns no storage.
package service

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"fieldbook/backend/internal/apperr"
	"fieldbook/backend/internal/audit"
	auditdomain "fieldbook/backend/internal/audit/domain"
	authdomain "fieldbook/backend/internal/auth/domain"
	"fieldbook/backend/internal/clock"
	"fieldbook/backend/internal/logging"
	refreshdomain "fieldbook/backend/internal/refreshtoken/domain"
	"fieldbook/backend/internal/security"
	sessiondomain "fieldbook/backend/internal/session/domain"
	sessionsvc "fieldbook/backend/internal/session/service"
	"fieldbook/backend/internal/telemetry"
	telemetrydomain "fieldbook/backend/internal/telemetry/domain"
	userdomain "fieldbook/backend/internal/user/domain"
)

const (
	minPasswordLength = 6

	msgInvalidCredentials = "invalid email or password"
	msgInvalidRefresh     = "invalid or expired refresh token"
	msgInvalidAccess      = "invalid or expired token"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// RefreshTokenRepo is the minimal credential store needed by the auth service.
type RefreshTokenRepo interface {
	Save(ctx context.Context, t *refreshdomain.RefreshToken) error
	FindByHash(ctx context.Context, hash string) (*refreshdomain.RefreshToken, error)
	RevokeBySession(ctx context.Context, sessionID string, at time.Time) (int64, error)
	RevokeAllForOwner(ctx context.Context, userID string, at time.Time) (int64, error)
	Rotate(ctx context.Context, currentHash string, now time.Time, next *refreshdomain.RefreshToken) (bool, error)
}

// SessionRegistry is the subset of the session registry the auth service drives.
type SessionRegistry interface {
	Open(ctx context.Context, userID string, meta sessionsvc.Metadata) (*sessiondomain.Session, error)
	Get(ctx context.Context, token string) (*sessiondomain.Session, error)
	ListActive(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	Touch(ctx context.Context, token string) error
	DeactivateOne(ctx context.Context, token string) error
	DeactivateAll(ctx context.Context, userID string) (int64, error)
}

// Blacklist blocks access tokens before their natural expiry.
type Blacklist interface {
	Block(ctx context.Context, tokenID string, expiresAt time.Time, reason string) error
	IsBlocked(ctx context.Context, tokenID string) (bool, error)
}

// TokenCodec issues and verifies access tokens.
type TokenCodec interface {
	IssueAccess(subjectID, role, sessionID string, now time.Time) (security.AccessToken, error)
	VerifyAccess(raw string, now time.Time) (*security.AccessClaims, error)
	AccessTTL() time.Duration
}

// Deps holds the auth service collaborators. Audit, Events, ClientIP and Log may be nil.
type Deps struct {
	Users         UserRepo
	RefreshTokens RefreshTokenRepo
	Sessions      SessionRegistry
	Blacklist     Blacklist
	Tokens        TokenCodec
	Hasher        security.PasswordHasher
	Clock         clock.Clock
	Audit         audit.AuditLogger
	Events        telemetry.EventEmitter
	ClientIP      audit.IPExtractor
	Log           logging.Logger
}

// RegisterInput is the registration form.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// LoginInput carries credentials and the client description stored on the session.
type LoginInput struct {
	Email      string
	Password   string
	DeviceInfo string
	IPAddress  string
	UserAgent  string
	Location   string
}

// RefreshInput carries a presented refresh secret.
type RefreshInput struct {
	Secret     string
	DeviceInfo string
	IPAddress  string
}

// TokenPair is the result of a login or a successful rotation. RefreshToken is the raw secret;
// it is returned exactly once and never stored.
type TokenPair struct {
	Access           security.AccessToken
	RefreshToken     string
	RefreshExpiresAt time.Time
	SessionToken     string
}

// LoginResult is a TokenPair plus the opened session and the authenticated user.
type LoginResult struct {
	TokenPair
	Session *sessiondomain.Session
	User    *userdomain.User
}

// AuthService orchestrates the token and session stores.
type AuthService struct {
	users        UserRepo
	tokens       RefreshTokenRepo
	sessions     SessionRegistry
	blacklist    Blacklist
	codec        TokenCodec
	hasher       security.PasswordHasher
	clock        clock.Clock
	audit        audit.AuditLogger
	events       telemetry.EventEmitter
	clientIP     audit.IPExtractor
	log          logging.Logger
	refreshTTL   time.Duration
	storeTimeout time.Duration
}

// NewAuthService returns an AuthService. Refresh records live for refreshTTL; every direct
// store call runs under storeTimeout.
func NewAuthService(deps Deps, refreshTTL, storeTimeout time.Duration) *AuthService {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Log == nil {
		deps.Log = logging.Nop()
	}
	return &AuthService{
		users:        deps.Users,
		tokens:       deps.RefreshTokens,
		sessions:     deps.Sessions,
		blacklist:    deps.Blacklist,
		codec:        deps.Tokens,
		hasher:       deps.Hasher,
		clock:        deps.Clock,
		audit:        deps.Audit,
		events:       deps.Events,
		clientIP:     deps.ClientIP,
		log:          deps.Log.With("component", "auth"),
		refreshTTL:   refreshTTL,
		storeTimeout: storeTimeout,
	}
}

func (s *AuthService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// Register validates the form, then creates a USER account with a hashed password.
// Validation failures never reach the store.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*userdomain.User, error) {
	if err := validateRegistration(in); err != nil {
		return nil, err
	}
	email := userdomain.NormalizeEmail(in.Email)

	sctx, cancel := s.storeCtx(ctx)
	existing, err := s.users.GetByEmail(sctx, email)
	cancel()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("email already registered")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "hash password", err)
	}
	now := s.clock.Now()
	u := &userdomain.User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: hash,
		Role:         userdomain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	sctx, cancel = s.storeCtx(ctx)
	defer cancel()
	if err := s.users.Create(sctx, u); err != nil {
		return nil, err
	}
	s.record(ctx, auditdomain.ActionRegister, u.ID, "", "user", nil)
	return u, nil
}

func validateRegistration(in RegisterInput) error {
	fields := map[string][]string{}
	if strings.TrimSpace(in.FirstName) == "" {
		fields["firstName"] = append(fields["firstName"], "first name is required")
	}
	if strings.TrimSpace(in.LastName) == "" {
		fields["lastName"] = append(fields["lastName"], "last name is required")
	}
	email := strings.TrimSpace(in.Email)
	switch {
	case email == "":
		fields["email"] = append(fields["email"], "email is required")
	case !emailPattern.MatchString(email):
		fields["email"] = append(fields["email"], "invalid email format")
	}
	if len(in.Password) < minPasswordLength {
		fields["password"] = append(fields["password"], "password must be at least 6 characters")
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	return nil
}

// Login checks credentials, opens a session, persists one refresh record and issues one access token.
// Unknown email and wrong password fail identically.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := userdomain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}
	sctx, cancel := s.storeCtx(ctx)
	u, err := s.users.GetByEmail(sctx, email)
	cancel()
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.record(ctx, auditdomain.ActionLoginFailure, "", "", "user", map[string]string{"reason": "unknown_email"})
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}
	if err := s.hasher.Compare(u.PasswordHash, in.Password); err != nil {
		s.record(ctx, auditdomain.ActionLoginFailure, u.ID, "", "user", map[string]string{"reason": "bad_password"})
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}

	sess, err := s.sessions.Open(ctx, u.ID, sessionsvc.Metadata{
		DeviceInfo: in.DeviceInfo,
		IPAddress:  in.IPAddress,
		UserAgent:  in.UserAgent,
		Location:   in.Location,
	})
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	secret, rec, err := s.newRefreshRecord(u.ID, sess.Token, sess.ExpiresAt, in.DeviceInfo, in.IPAddress, now)
	if err != nil {
		s.abandonSession(ctx, sess.Token)
		return nil, err
	}
	sctx, cancel = s.storeCtx(ctx)
	err = s.tokens.Save(sctx, rec)
	cancel()
	if err != nil {
		s.abandonSession(ctx, sess.Token)
		return nil, err
	}
	access, err := s.codec.IssueAccess(u.ID, string(u.Role), sess.Token, now)
	if err != nil {
		s.abandonSession(ctx, sess.Token)
		return nil, apperr.Wrap(apperr.KindInternal, "issue access token", err)
	}
	s.record(ctx, auditdomain.ActionLogin, u.ID, sess.Token, "session", map[string]string{"device": in.DeviceInfo})
	return &LoginResult{
		TokenPair: TokenPair{
			Access:           access,
			RefreshToken:     secret,
			RefreshExpiresAt: rec.ExpiresAt,
			SessionToken:     sess.Token,
		},
		Session: sess,
		User:    u,
	}, nil
}

// abandonSession ends a session whose login could not complete. Best-effort.
func (s *AuthService) abandonSession(ctx context.Context, token string) {
	if err := s.endSession(ctx, token); err != nil {
		s.log.Warn(ctx, "failed to deactivate abandoned session", "session", token, "error", err)
	}
}

// newRefreshRecord builds a record that never outlives its session, so a record that is
// neither revoked nor expired always belongs to a live session.
func (s *AuthService) newRefreshRecord(userID, sessionID string, sessionExpiresAt time.Time, deviceInfo, ip string, now time.Time) (string, *refreshdomain.RefreshToken, error) {
	secret, err := security.GenerateRefreshSecret()
	if err != nil {
		return "", nil, apperr.Wrap(apperr.KindInternal, "generate refresh secret", err)
	}
	expiresAt := now.Add(s.refreshTTL)
	if sessionExpiresAt.Before(expiresAt) {
		expiresAt = sessionExpiresAt
	}
	return secret, &refreshdomain.RefreshToken{
		TokenHash:  security.HashRefreshToken(secret),
		UserID:     userID,
		SessionID:  sessionID,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
		DeviceInfo: deviceInfo,
		IPAddress:  ip,
	}, nil
}

// Refresh exchanges a refresh secret for a new pair. A secret that was already rotated away is
// treated as theft: every record and session of its owner is revoked. All failures look the same
// to the caller.
func (s *AuthService) Refresh(ctx context.Context, in RefreshInput) (*TokenPair, error) {
	if strings.TrimSpace(in.Secret) == "" {
		return nil, apperr.Unauthorized(msgInvalidRefresh)
	}
	hash := security.HashRefreshToken(in.Secret)
	cur, err := s.findRefresh(ctx, hash)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, apperr.Unauthorized(msgInvalidRefresh)
	}
	if cur.Revoked {
		return nil, s.revokedPresented(ctx, cur)
	}
	now := s.clock.Now()
	if cur.IsExpired(now) {
		return nil, apperr.Unauthorized(msgInvalidRefresh)
	}
	sess, err := s.sessions.Get(ctx, cur.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.IsValid(now) {
		s.retireFamily(ctx, cur.SessionID, now)
		return nil, apperr.Unauthorized(msgInvalidRefresh)
	}

	sctx, cancel := s.storeCtx(ctx)
	u, err := s.users.GetByID(sctx, cur.UserID)
	cancel()
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.Unauthorized(msgInvalidRefresh)
	}

	deviceInfo := in.DeviceInfo
	if deviceInfo == "" {
		deviceInfo = cur.DeviceInfo
	}
	ip := in.IPAddress
	if ip == "" {
		ip = cur.IPAddress
	}
	secret, next, err := s.newRefreshRecord(cur.UserID, cur.SessionID, sess.ExpiresAt, deviceInfo, ip, now)
	if err != nil {
		return nil, err
	}
	next.LastUsedAt = &now

	sctx, cancel = s.storeCtx(ctx)
	rotated, err := s.tokens.Rotate(sctx, hash, now, next)
	cancel()
	if err != nil {
		return nil, err
	}
	if !rotated {
		// Lost the conditional write: either a concurrent rotation won or the record just expired.
		latest, err := s.findRefresh(ctx, hash)
		if err != nil {
			return nil, err
		}
		if latest != nil && latest.Revoked {
			return nil, s.revokedPresented(ctx, latest)
		}
		return nil, apperr.Unauthorized(msgInvalidRefresh)
	}

	if err := s.sessions.Touch(ctx, cur.SessionID); err != nil {
		s.log.Warn(ctx, "session touch after refresh failed", "session", cur.SessionID, "error", err)
	}
	access, err := s.codec.IssueAccess(u.ID, string(u.Role), cur.SessionID, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "issue access token", err)
	}
	s.record(ctx, auditdomain.ActionRefresh, u.ID, cur.SessionID, "refresh_token", nil)
	return &TokenPair{
		Access:           access,
		RefreshToken:     secret,
		RefreshExpiresAt: next.ExpiresAt,
		SessionToken:     cur.SessionID,
	}, nil
}

// retireFamily revokes the records of a session that ended without taking them along.
// Best-effort: the caller rejects the secret either way.
func (s *AuthService) retireFamily(ctx context.Context, sessionID string, now time.Time) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if _, err := s.tokens.RevokeBySession(sctx, sessionID, now); err != nil {
		s.log.Warn(ctx, "failed to revoke refresh records of ended session", "session", sessionID, "error", err)
	}
}

func (s *AuthService) findRefresh(ctx context.Context, hash string) (*refreshdomain.RefreshToken, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.tokens.FindByHash(sctx, hash)
}

// revokedPresented handles a revoked secret. Every path that ends a session also revokes its
// records, and records expire with their session, so while the session is still live a revoked
// secret can only have been rotated away: that is reuse. A secret revoked by logout or by an
// earlier cascade belongs to a dead session and is simply rejected.
func (s *AuthService) revokedPresented(ctx context.Context, rec *refreshdomain.RefreshToken) error {
	sess, err := s.sessions.Get(ctx, rec.SessionID)
	if err != nil {
		return err
	}
	if sess == nil || !sess.IsValid(s.clock.Now()) {
		return apperr.Unauthorized(msgInvalidRefresh)
	}
	return s.reuseDetected(ctx, rec)
}

// reuseDetected revokes every refresh record and session of the record's owner. It returns
// Unauthorized once the cascade is durable, or the store failure that prevented it.
func (s *AuthService) reuseDetected(ctx context.Context, rec *refreshdomain.RefreshToken) error {
	s.log.Warn(ctx, "refresh token reuse detected, revoking all sessions",
		"user_id", rec.UserID, "session", rec.SessionID)
	revoked, sessions, err := s.revokeEverything(ctx, rec.UserID)
	s.record(ctx, auditdomain.ActionRefreshReuseDetected, rec.UserID, rec.SessionID, "refresh_token", map[string]string{
		"revoked_tokens":   strconv.FormatInt(revoked, 10),
		"revoked_sessions": strconv.FormatInt(sessions, 10),
	})
	if err != nil {
		return err
	}
	return apperr.Unauthorized(msgInvalidRefresh)
}

func (s *AuthService) revokeEverything(ctx context.Context, userID string) (tokens, sessions int64, err error) {
	sctx, cancel := s.storeCtx(ctx)
	tokens, err = s.tokens.RevokeAllForOwner(sctx, userID, s.clock.Now())
	cancel()
	if err != nil {
		return 0, 0, err
	}
	sessions, err = s.sessions.DeactivateAll(ctx, userID)
	return tokens, sessions, err
}

// Logout ends one session and revokes the refresh records of that session only. A session
// that was already purged still has its records revoked.
func (s *AuthService) Logout(ctx context.Context, sessionToken string) error {
	sess, err := s.sessions.Get(ctx, sessionToken)
	if err != nil {
		return err
	}
	if sess == nil {
		sctx, cancel := s.storeCtx(ctx)
		defer cancel()
		_, err := s.tokens.RevokeBySession(sctx, sessionToken, s.clock.Now())
		return err
	}
	if err := s.endSession(ctx, sessionToken); err != nil {
		return err
	}
	s.record(ctx, auditdomain.ActionLogout, sess.UserID, sessionToken, "session", nil)
	return nil
}

func (s *AuthService) endSession(ctx context.Context, sessionToken string) error {
	if err := s.sessions.DeactivateOne(ctx, sessionToken); err != nil {
		return err
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	_, err := s.tokens.RevokeBySession(sctx, sessionToken, s.clock.Now())
	return err
}

// LogoutAll revokes every refresh record and deactivates every session of userID.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	revoked, sessions, err := s.revokeEverything(ctx, userID)
	if err != nil {
		return err
	}
	s.record(ctx, auditdomain.ActionLogoutAll, userID, "", "session", map[string]string{
		"revoked_tokens":   strconv.FormatInt(revoked, 10),
		"revoked_sessions": strconv.FormatInt(sessions, 10),
	})
	return nil
}

// InvalidateAccessToken blocks the principal's access token until it would have expired anyway.
func (s *AuthService) InvalidateAccessToken(ctx context.Context, p *authdomain.Principal, reason string) error {
	if p == nil || p.TokenID == "" {
		return nil
	}
	return s.blacklist.Block(ctx, p.TokenID, p.ExpiresAt, reason)
}

// Authenticate verifies raw and checks the blacklist. Any token problem is Unauthorized; a
// blacklist that cannot be consulted is Unavailable, never a silent pass.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*authdomain.Principal, error) {
	if raw == "" {
		return nil, apperr.Unauthorized(msgInvalidAccess)
	}
	claims, err := s.codec.VerifyAccess(raw, s.clock.Now())
	if err != nil {
		return nil, apperr.Unauthorized(msgInvalidAccess)
	}
	blocked, err := s.blacklist.IsBlocked(ctx, claims.ID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnavailable {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindUnavailable, "token blacklist unavailable", err)
	}
	if blocked {
		return nil, apperr.Unauthorized(msgInvalidAccess)
	}
	p := &authdomain.Principal{
		UserID:    claims.Subject,
		Role:      claims.Role,
		SessionID: claims.SessionID,
		TokenID:   claims.ID,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	if p.SessionID != "" {
		if err := s.sessions.Touch(ctx, p.SessionID); err != nil {
			s.log.Debug(ctx, "session touch failed", "session", p.SessionID, "error", err)
		}
	}
	return p, nil
}

// ListSessions returns the user's valid sessions, most recently active first.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	return s.sessions.ListActive(ctx, userID)
}

// TerminateSession ends one of userID's own live sessions. Sessions owned by anyone else, or
// already ended, are NotFound.
func (s *AuthService) TerminateSession(ctx context.Context, userID, sessionToken string) error {
	sess, err := s.sessions.Get(ctx, sessionToken)
	if err != nil {
		return err
	}
	if sess == nil || sess.UserID != userID || !sess.IsValid(s.clock.Now()) {
		return apperr.NotFound("session not found")
	}
	if err := s.endSession(ctx, sessionToken); err != nil {
		return err
	}
	s.record(ctx, auditdomain.ActionSessionTerminated, userID, sessionToken, "session", nil)
	return nil
}

// record writes the audit entry and emits the matching security event. Both are best-effort.
func (s *AuthService) record(ctx context.Context, action, userID, sessionID, resource string, meta map[string]string) {
	var metaJSON []byte
	if len(meta) > 0 {
		metaJSON, _ = json.Marshal(meta)
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, userID, action, resource, string(metaJSON))
	}
	if s.events != nil {
		ev := telemetrydomain.NewEvent(action, userID, sessionID, s.clock.Now())
		ev.Metadata = metaJSON
		if s.clientIP != nil {
			ev.IP = s.clientIP(ctx)
		}
		telemetry.EmitAsync(ctx, s.events, s.log, ev)
	}
}
