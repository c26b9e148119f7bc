// Package handlers implements the HTTP API of the attendance service.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/geofence"
	"github.com/kozaktomas/face-attendance/internal/session"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

var validate = validator.New(validator.WithRequiredStructEnabled())

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondValidationError lists the failed field rules.
func respondValidationError(w http.ResponseWriter, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Namespace()] = fe.Tag()
	}
	respondJSON(w, http.StatusBadRequest, map[string]any{
		"error":  "validation failed",
		"fields": fields,
	})
}

// decodeJSON decodes and validates a request body. An empty body is allowed
// when allowEmpty is set. It writes the error response itself and reports
// whether the handler should continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return false
		}
	}
	if err := validate.Struct(dst); err != nil {
		respondValidationError(w, err)
		return false
	}
	return true
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	var violation *geofence.Violation
	switch {
	case errors.As(err, &violation),
		errors.Is(err, facematch.ErrNotEnoughSamples),
		errors.Is(err, capture.ErrImageTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, attendance.ErrSessionNotFound),
		errors.Is(err, database.ErrNotFound),
		errors.Is(err, session.ErrUnknownStudent):
		return http.StatusNotFound
	case errors.Is(err, session.ErrAIUnavailable),
		errors.Is(err, attendance.ErrSessionClosed),
		errors.Is(err, attendance.ErrCaptureActive),
		errors.Is(err, facematch.ErrDimensionMismatch):
		return http.StatusConflict
	case errors.Is(err, capture.ErrCaptureUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, attendance.ErrSubmission):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError writes err with the mapped status. Internal errors are
// logged and replaced with a generic message.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %s", r.Method, sanitizeForLog(r.URL.Path), sanitizeForLog(err.Error()))
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if name := database.BackendName(); name != "" {
		resp["storage"] = name
	}
	respondJSON(w, http.StatusOK, resp)
}
