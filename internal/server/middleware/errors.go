package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// ErrorDetail is the inner error object of the JSON envelope.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the JSON error envelope written by the middleware.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// recoveryLogger is used for panic reports. Replaceable so the server
// can route panics into its structured logger.
var recoveryLogger = zap.NewNop()

// SetLogger routes middleware logging (panic reports) into the given
// logger. Pass nil to silence it.
func SetLogger(l *zap.Logger) {
	if l == nil {
		recoveryLogger = zap.NewNop()
		return
	}
	recoveryLogger = l
}

// Recovery converts handler panics into a 500 JSON error response
// instead of tearing down the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				requestID := GetRequestID(r.Context())
				recoveryLogger.Error("handler panicked",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestID))

				writeErrorResponse(w, ErrorDetail{
					Code:      "INTERNAL_ERROR",
					Message:   fmt.Sprintf("panic: %v", rec),
					RequestID: requestID,
				}, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ErrorHandler is an alias for Recovery, kept for callers that read
// better with this name in the middleware chain.
func ErrorHandler(next http.Handler) http.Handler {
	return Recovery(next)
}

// writeErrorResponse writes the envelope with the given status.
func writeErrorResponse(w http.ResponseWriter, detail ErrorDetail, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: detail})
}
