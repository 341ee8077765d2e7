package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offloadhq/offload/internal/server/middleware"
	"github.com/offloadhq/offload/pkg/jobstore"
	"github.com/offloadhq/offload/pkg/manifest"
	"github.com/offloadhq/offload/pkg/orchestrator"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) HTTPErrorResponse {
	t.Helper()
	var resp HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRespondWithError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown job", jobstore.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{"wrapped unknown job", fmt.Errorf("lookup: %w", jobstore.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"result not ready", orchestrator.ErrNotReady, http.StatusConflict, CodeNotReady},
		{"invalid manifest", fmt.Errorf("load: %w", manifest.ErrValidationFailed), http.StatusBadRequest, CodeValidation},
		{"anything else", errors.New("disk exploded"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/jobs/x", nil)
			rec := httptest.NewRecorder()

			RespondWithError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decode(t, rec)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestRespondWithError_DoesNotLeakInternalDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/jobs/x", nil)
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, errors.New("dial tcp 10.0.0.5: connection refused"))

	resp := decode(t, rec)
	assert.Equal(t, CodeInternal, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "10.0.0.5")
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, CodeNotFound, "job not found", nil)
	}))

	req := httptest.NewRequest(http.MethodGet, "/jobs/x", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	resp := decode(t, rec)
	assert.Equal(t, "req-42", resp.Error.RequestID)
	assert.Equal(t, "req-42", rec.Header().Get(middleware.RequestIDHeader))
}
