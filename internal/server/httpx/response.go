// Package httpx holds the JSON response helpers shared by the HTTP handlers. WriteError is the
// only place an apperr.Kind becomes a status code.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"fieldbook/backend/internal/apperr"
)

// retryAfterSeconds is advertised on 503 responses.
const retryAfterSeconds = "1"

// maxBodyBytes caps a decoded request body.
const maxBodyBytes = 1 << 20

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	ErrorCode   string              `json:"errorCode"`
	Message     string              `json:"message"`
	Path        string              `json:"path"`
	FieldErrors map[string][]string `json:"fieldErrors,omitempty"`
}

// WriteJSON writes v as JSON with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Status returns the HTTP status for err.
func Status(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation, apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindUnauthorized, apperr.KindAccessDenied:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(k apperr.Kind) string {
	switch k {
	case apperr.KindNotFound:
		return "NOT_FOUND"
	case apperr.KindValidation:
		return "BUSINESS_VALIDATION_ERROR"
	case apperr.KindBadRequest:
		return "VALIDATION_ERROR"
	case apperr.KindUnauthorized:
		return "UNAUTHORIZED"
	case apperr.KindAccessDenied:
		return "ACCESS_DENIED"
	case apperr.KindConflict:
		return "CONFLICT"
	case apperr.KindUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

// WriteError writes the envelope for err. Internal errors never expose their cause.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	resp := ErrorResponse{
		ErrorCode: errorCode(kind),
		Message:   "internal server error",
		Path:      r.URL.Path,
	}
	var ae *apperr.Error
	if kind != apperr.KindInternal && errors.As(err, &ae) {
		resp.Message = ae.Message
		resp.FieldErrors = ae.Fields
	}
	if kind == apperr.KindUnavailable {
		if ae == nil {
			resp.Message = "service temporarily unavailable"
		}
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	WriteJSON(w, Status(err), resp)
}

// DecodeJSON decodes the request body into dst. An empty or malformed body is a bad request.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.BadRequest("request body is required")
		}
		return apperr.Wrap(apperr.KindBadRequest, "malformed request body", err)
	}
	return nil
}
