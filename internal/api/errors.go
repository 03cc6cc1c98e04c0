package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/scopelink-core/internal/backend"
	"github.com/nerrad567/scopelink-core/internal/command"
	"github.com/nerrad567/scopelink-core/internal/core"
	"github.com/nerrad567/scopelink-core/internal/device"
	"github.com/nerrad567/scopelink-core/internal/notice"
	"github.com/nerrad567/scopelink-core/internal/observation"
	"github.com/nerrad567/scopelink-core/internal/session"
	"github.com/nerrad567/scopelink-core/internal/telemetry"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeUnauthorized     = "unauthorised"
	ErrCodeConflict         = "conflict"
	ErrCodeInternal         = "internal_error"
	ErrCodeValidation       = "validation_error"
	ErrCodeNoDevice         = "no_device_selected"
	ErrCodeNotConnected     = "not_connected"
	ErrCodeNoSession        = "no_active_session"
	ErrCodeTimeout          = "timeout"
	ErrCodeRejected         = "rejected"
	ErrCodeConnectionLost   = "connection_lost"
	ErrCodeBackend          = "backend_error"
	ErrCodeUnavailable      = "unavailable"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// errorStatus classifies a core error. A timed-out command is reported as
// 504 because its effect on the device is unknown, not failed.
func errorStatus(err error) (int, string) {
	var rejected *command.RejectedError
	switch {
	case errors.As(err, &rejected):
		return http.StatusUnprocessableEntity, ErrCodeRejected
	case errors.Is(err, command.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeTimeout
	case errors.Is(err, command.ErrNoDeviceSelected), errors.Is(err, core.ErrNoDeviceSelected):
		return http.StatusConflict, ErrCodeNoDevice
	case errors.Is(err, command.ErrNotConnected):
		return http.StatusConflict, ErrCodeNotConnected
	case errors.Is(err, command.ErrConnectionLost), errors.Is(err, command.ErrSendFailed):
		return http.StatusBadGateway, ErrCodeConnectionLost
	case errors.Is(err, command.ErrInvalidArgument),
		errors.Is(err, device.ErrInvalidDevice),
		errors.Is(err, observation.ErrInvalidRating):
		return http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, device.ErrDeviceNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, observation.ErrEntryNotFound),
		errors.Is(err, notice.ErrNotFound),
		errors.Is(err, telemetry.ErrUnknownJob):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, device.ErrDeviceExists), errors.Is(err, session.ErrSessionActive):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, session.ErrNoActiveSession):
		return http.StatusConflict, ErrCodeNoSession
	case errors.Is(err, backend.ErrDiscovery), errors.Is(err, backend.ErrRequest):
		return http.StatusBadGateway, ErrCodeBackend
	case errors.Is(err, core.ErrClosed), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	}
	return http.StatusInternalServerError, ErrCodeInternal
}

// writeCoreError maps err onto a structured response.
func (s *Server) writeCoreError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
	}
	writeError(w, status, code, err.Error())
}

// decodeJSON reads a JSON body into dst and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}
