package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offloadhq/offload/pkg/jobstore"
	"github.com/offloadhq/offload/pkg/orchestrator"
	"github.com/offloadhq/offload/pkg/remote"
)

// stubPlatform drives every job to completion with a canned output.
type stubPlatform struct {
	mu sync.Mutex

	// createBlock, when non-nil, stalls CreateDataset until closed. Jobs
	// stay in the uploading state while blocked.
	createBlock chan struct{}
}

func (p *stubPlatform) Account() string { return "tester" }

func (p *stubPlatform) CreateDataset(ctx context.Context, localDir string, spec remote.DatasetSpec) error {
	p.mu.Lock()
	block := p.createBlock
	p.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *stubPlatform) PushKernel(ctx context.Context, spec remote.KernelSpec) error {
	return nil
}

func (p *stubPlatform) KernelStatus(ctx context.Context, slug string) (remote.KernelState, error) {
	return remote.KernelStateComplete, nil
}

func (p *stubPlatform) DownloadOutput(ctx context.Context, slug, destDir string) error {
	f, err := os.Create(destDir + "/output.zip")
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("output.mp4")
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("processed")); err != nil {
		return err
	}
	return zw.Close()
}

func (p *stubPlatform) Close() error { return nil }

func newTestRouter(t *testing.T, platform remote.Platform) (*chi.Mux, *orchestrator.Orchestrator) {
	t.Helper()

	ws := jobstore.NewWorkspace(t.TempDir())
	cfg := orchestrator.Config{
		GraceWait:     time.Millisecond,
		PollInterval:  5 * time.Millisecond,
		PollBudget:    2 * time.Second,
		OutputPattern: "output*",
	}
	orch := orchestrator.New(jobstore.NewRegistry(), ws, platform, nil, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})

	h := NewJobsHandler(orch, nil)
	r := chi.NewRouter()
	r.Post("/jobs", h.Submit)
	r.Get("/jobs", h.List)
	r.Get("/jobs/{jobID}", h.Status)
	r.Get("/jobs/{jobID}/result", h.Result)
	return r, orch
}

func multipartBody(t *testing.T, filename string, content []byte, directive string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	if directive != "" {
		require.NoError(t, mw.WriteField("directive", directive))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeError(t *testing.T, body *bytes.Buffer) (code, message string) {
	t.Helper()

	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body.Bytes(), &resp))
	return resp.Error.Code, resp.Error.Message
}

func TestSubmit_Accepted(t *testing.T) {
	router, _ := newTestRouter(t, &stubPlatform{})

	body, contentType := multipartBody(t, "clip.mov", []byte("raw-video"), "scale to 720p")
	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, "uploading", resp.Status)
}

func TestSubmit_MissingDirective(t *testing.T) {
	router, _ := newTestRouter(t, &stubPlatform{})

	body, contentType := multipartBody(t, "clip.mov", []byte("raw-video"), "")
	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	code, msg := decodeError(t, rec.Body)
	assert.Equal(t, "VALIDATION_ERROR", code)
	assert.Contains(t, msg, "directive")
}

func TestSubmit_MissingFile(t *testing.T) {
	router, _ := newTestRouter(t, &stubPlatform{})

	body, contentType := multipartBody(t, "", nil, "scale to 720p")
	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	code, _ := decodeError(t, rec.Body)
	assert.Equal(t, "VALIDATION_ERROR", code)
}

func TestSubmit_WithParams(t *testing.T) {
	router, _ := newTestRouter(t, &stubPlatform{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "clip.mov")
	require.NoError(t, err)
	_, err = fw.Write([]byte("raw-video"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("directive", "scale to 720p"))
	require.NoError(t, mw.WriteField("params", `{"preset":"slow"}`))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/jobs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSubmit_MalformedParams(t *testing.T) {
	router, _ := newTestRouter(t, &stubPlatform{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "clip.mov")
	require.NoError(t, err)
	_, err = fw.Write([]byte("raw-video"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("directive", "scale to 720p"))
	require.NoError(t, mw.WriteField("params", `not-json`))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/jobs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	code, msg := decodeError(t, rec.Body)
	assert.Equal(t, "VALIDATION_ERROR", code)
	assert.Contains(t, msg, "params")
}

func TestSubmit_NotMultipart(t *testing.T) {
	router, _ := newTestRouter(t, &stubPlatform{})

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString(`{"directive":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	code, _ := decodeError(t, rec.Body)
	assert.Equal(t, "VALIDATION_ERROR", code)
}

func TestStatus_UnknownJob(t *testing.T) {
	router, _ := newTestRouter(t, &stubPlatform{})

	req := httptest.NewRequest(http.MethodGet, "/jobs/deadbeef", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	code, _ := decodeError(t, rec.Body)
	assert.Equal(t, "NOT_FOUND", code)
}

func TestResult_NotReadyVsNotFound(t *testing.T) {
	platform := &stubPlatform{createBlock: make(chan struct{})}
	router, orch := newTestRouter(t, platform)

	jobID, err := orch.Submit(context.Background(), []byte("raw"), "keep audio", "clip.mov", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobID+"/result", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	code, _ := decodeError(t, rec.Body)
	assert.Equal(t, "NOT_READY", code)

	req = httptest.NewRequest(http.MethodGet, "/jobs/unknown/result", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	code, _ = decodeError(t, rec.Body)
	assert.Equal(t, "NOT_FOUND", code)

	close(platform.createBlock)
}

func TestResult_StreamsCompletedOutput(t *testing.T) {
	router, orch := newTestRouter(t, &stubPlatform{})

	jobID, err := orch.Submit(context.Background(), []byte("raw"), "keep audio", "clip.mov", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := orch.Project(jobID)
		return err == nil && status.Status == "done"
	}, 5*time.Second, 2*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobID+"/result", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "processed", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "output.mp4")
}

func TestList_EmptyAndOrdered(t *testing.T) {
	router, orch := newTestRouter(t, &stubPlatform{createBlock: make(chan struct{})})

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp jobListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Jobs)

	first, err := orch.Submit(context.Background(), []byte("a"), "one", "a.mov", nil)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := orch.Submit(context.Background(), []byte("b"), "two", "b.mov", nil)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, second, resp.Jobs[0].JobID)
	assert.Equal(t, first, resp.Jobs[1].JobID)
}
