package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// apiVersion is reported in every response envelope.
const apiVersion = "v1"

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// writeJSON writes a successful JSON response.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeEnvelope(w, status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      newMeta(),
		RequestID: getRequestID(r.Context()),
	})
}

// writeJSONError writes an error JSON response.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]string) {
	writeEnvelope(w, status, JSONResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta:      newMeta(),
		RequestID: getRequestID(r.Context()),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, response JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func newMeta() *ResponseMeta {
	return &ResponseMeta{Timestamp: time.Now().UTC(), Version: apiVersion}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// errorResponse is the HTTP rendering of an application error.
type errorResponse struct {
	status  int
	code    string
	message string
	details map[string]string
}

// classifyError maps application errors to HTTP responses. Internal details
// never leak for 5xx responses.
func classifyError(err error) errorResponse {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return errorResponse{http.StatusBadRequest, "invalid_request", reqErr.Message, reqErr.Fields}

	case shared.IsUnauthorized(err):
		return errorResponse{http.StatusUnauthorized, "unauthorized", "authentication required", nil}

	case shared.IsNotEnrolled(err):
		return errorResponse{http.StatusForbidden, "not_enrolled", "student is not enrolled in this course", nil}

	case errors.Is(err, shared.ErrLessonNotFound):
		return errorResponse{http.StatusNotFound, "lesson_not_found", "lesson not found", nil}
	case errors.Is(err, shared.ErrEnrollmentNotFound):
		return errorResponse{http.StatusNotFound, "enrollment_not_found", "enrollment not found", nil}
	case errors.Is(err, shared.ErrCourseNotFound):
		return errorResponse{http.StatusNotFound, "course_not_found", "course not found", nil}
	case shared.IsNotFound(err):
		return errorResponse{http.StatusNotFound, "not_found", "resource not found", nil}

	case shared.IsValidation(err):
		return errorResponse{http.StatusBadRequest, "invalid_request", validationMessage(err), nil}

	case shared.IsConcurrentModification(err):
		return errorResponse{http.StatusConflict, "concurrent_modification", "the resource was modified concurrently, retry the request", nil}

	case errors.Is(err, shared.ErrRateLimited):
		return errorResponse{http.StatusServiceUnavailable, "upstream_rate_limited", "an upstream service is rate limiting requests", nil}
	case shared.IsExternalService(err), errors.Is(err, context.DeadlineExceeded):
		return errorResponse{http.StatusServiceUnavailable, "service_unavailable", "a required service is unavailable", nil}

	default:
		return errorResponse{http.StatusInternalServerError, "internal_error", "an unexpected error occurred", nil}
	}
}

// validationMessage returns the domain message of a validation error.
func validationMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return "invalid request"
}

// writeError renders err and logs server-side failures.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := classifyError(err)

	log := s.logger.With(
		logger.Operation(op),
		logger.String("request_id", getRequestID(r.Context())),
		logger.Int("status", resp.status),
		logger.Err(err),
	)
	if resp.status >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Debug("request rejected")
	}

	writeJSONError(w, r, resp.status, resp.code, resp.message, resp.details)
}
