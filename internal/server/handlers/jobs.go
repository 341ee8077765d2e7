package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/offloadhq/offload/internal/errors"
	"github.com/offloadhq/offload/pkg/orchestrator"
)

// maxUploadBytes caps the request body for job submissions.
const maxUploadBytes = 512 << 20

// JobsHandler exposes the job lifecycle over HTTP: submit, list, status,
// and result retrieval.
type JobsHandler struct {
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
}

func NewJobsHandler(orch *orchestrator.Orchestrator, logger *zap.Logger) *JobsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobsHandler{orch: orch, logger: logger}
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type jobListResponse struct {
	Jobs []orchestrator.ExternalStatus `json:"jobs"`
}

// Submit accepts a multipart upload (file + directive, plus an optional
// params field carrying a JSON object) and registers the job. The
// response returns before any remote work starts.
func (h *JobsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		apperrors.WriteError(w, r, http.StatusBadRequest, apperrors.CodeValidation,
			"request must be multipart/form-data with a file part", nil)
		return
	}

	directive := strings.TrimSpace(r.FormValue("directive"))
	if directive == "" {
		apperrors.WriteError(w, r, http.StatusBadRequest, apperrors.CodeValidation,
			"directive form field is required", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apperrors.WriteError(w, r, http.StatusBadRequest, apperrors.CodeValidation,
			"file form field is required", nil)
		return
	}
	defer file.Close()

	input, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if len(input) == 0 {
		apperrors.WriteError(w, r, http.StatusBadRequest, apperrors.CodeValidation,
			"uploaded file is empty", nil)
		return
	}

	var params map[string]any
	if raw := strings.TrimSpace(r.FormValue("params")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			apperrors.WriteError(w, r, http.StatusBadRequest, apperrors.CodeValidation,
				"params form field must be a JSON object", nil)
			return
		}
	}

	jobID, err := h.orch.Submit(r.Context(), input, directive, header.Filename, params)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	h.logger.Info("job accepted",
		zap.String("job_id", jobID),
		zap.String("filename", header.Filename),
		zap.Int("bytes", len(input)))

	writeJSON(w, http.StatusAccepted, submitResponse{JobID: jobID, Status: "uploading"})
}

// List returns every known job, newest first.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.orch.ProjectAll()
	if jobs == nil {
		jobs = []orchestrator.ExternalStatus{}
	}
	writeJSON(w, http.StatusOK, jobListResponse{Jobs: jobs})
}

// Status returns the externally visible state of one job.
func (h *JobsHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	status, err := h.orch.Project(jobID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Result streams the completed output. Unknown jobs get 404; known jobs
// that have not finished get 409.
func (h *JobsHandler) Result(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	path, err := h.orch.ResultPath(jobID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}
