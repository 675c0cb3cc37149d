// Package apperr is the error taxonomy shared by stores, services and the HTTP boundary.
// Stores wrap driver failures once; services return *Error values; the HTTP layer maps Kind to a status.
package apperr

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies an error for callers.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	// KindValidation is a business validation failure carrying per-field messages.
	KindValidation
	// KindBadRequest is malformed input (undecodable body, missing header).
	KindBadRequest
	KindUnauthorized
	KindAccessDenied
	KindConflict
	// KindUnavailable is an infrastructure failure (timeout, lost connection). Retryable.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindAccessDenied:
		return "access_denied"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Retryable reports whether a caller may retry the same request.
func (k Kind) Retryable() bool { return k == KindUnavailable }

// Error is a classified error.
type Error struct {
	Kind    Kind
	Message string
	// Fields maps a request field to its validation messages. Only set for KindValidation.
	Fields map[string][]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func NotFound(msg string) *Error     { return New(KindNotFound, msg) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }
func AccessDenied(msg string) *Error { return New(KindAccessDenied, msg) }
func Conflict(msg string) *Error     { return New(KindConflict, msg) }
func BadRequest(msg string) *Error   { return New(KindBadRequest, msg) }

// Validation builds a business validation error from field messages.
func Validation(fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// KindOf returns the Kind of err. Unclassified context deadlines count as unavailable;
// everything else unclassified is internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindUnavailable
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Storage wraps a store failure for operation op. Timeouts and connection failures become
// KindUnavailable, unique violations KindConflict, the rest KindInternal. Already classified
// errors pass through.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	msg := op + " failed"
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Wrap(KindUnavailable, msg, err)
	case errors.Is(err, driver.ErrBadConn), pgconn.Timeout(err):
		return Wrap(KindUnavailable, msg, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Wrap(KindUnavailable, msg, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return Wrap(KindUnavailable, msg, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Wrap(KindConflict, msg, err)
	}
	return Wrap(KindInternal, msg, err)
}
