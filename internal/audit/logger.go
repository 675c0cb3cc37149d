package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fieldbook/backend/internal/audit/domain"
	auditrepo "fieldbook/backend/internal/audit/repository"
	"fieldbook/backend/internal/clock"
	"fieldbook/backend/internal/logging"
)

// writeTimeout bounds a single audit insert so a slow store never stalls an auth call.
const writeTimeout = 2 * time.Second

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	clock       clock.Clock
	log         logging.Logger
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, clk clock.Clock, log logging.Logger) *Logger {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Logger{repo: repo, ipExtractor: ipExtractor, clock: clk, log: log}
}

// LogEvent writes one audit log entry. Errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.clock.Now(),
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := l.repo.Create(writeCtx, entry); err != nil {
		l.log.Warn(ctx, "audit: failed to log event", "action", action, "resource", resource, "error", err)
	}
}
