// Package errors provides the JSON error envelope shared by every HTTP
// surface of the server.
//
// All error responses have the shape:
//
//	{"error": {"code": "...", "message": "...", "request_id": "...", "details": {...}}}
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/offloadhq/offload/internal/server/middleware"
	"github.com/offloadhq/offload/pkg/jobstore"
	"github.com/offloadhq/offload/pkg/manifest"
	"github.com/offloadhq/offload/pkg/orchestrator"
)

// Stable machine-readable error codes.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeNotReady           = "NOT_READY"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeValidation         = "VALIDATION_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// HTTPErrorDetail is the inner error object of the envelope.
type HTTPErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HTTPErrorResponse is the JSON error envelope.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// WriteError writes the envelope with the given status and code. The
// request id is taken from the request context when present.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	resp := HTTPErrorResponse{
		Error: HTTPErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	if r != nil {
		resp.Error.RequestID = middleware.GetRequestID(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// RespondWithError maps a domain error to the envelope.
//
// Unrecognized errors become 500 INTERNAL_ERROR with a generic message;
// the underlying detail is not leaked to callers.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, jobstore.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, CodeNotFound, "job not found", nil)
	case errors.Is(err, orchestrator.ErrNotReady):
		WriteError(w, r, http.StatusConflict, CodeNotReady, "job result is not ready", nil)
	case errors.Is(err, manifest.ErrValidationFailed):
		WriteError(w, r, http.StatusBadRequest, CodeValidation, err.Error(), nil)
	default:
		WriteError(w, r, http.StatusInternalServerError, CodeInternal, "internal server error", nil)
	}
}
