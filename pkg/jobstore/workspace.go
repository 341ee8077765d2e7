package jobstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Well-known filenames inside a job directory.
const (
	// CanonicalOutputName is the fixed filename the retrieved output is
	// renamed to. Its presence is the read path's self-healing signal.
	CanonicalOutputName = "output.mp4"

	// DirectiveFileName holds the plain-text directive alongside the input.
	DirectiveFileName = "directive.txt"

	// EventsFileName is the per-job JSONL event log.
	EventsFileName = "events.jsonl"
)

// Workspace manages the on-disk directory layout for jobs.
//
// Layout:
//
//	<root>/<job_id>/input<ext>
//	<root>/<job_id>/directive.txt
//	<root>/<job_id>/events.jsonl
//	<root>/<job_id>/output.mp4        (after successful retrieval)
//
// There is no database: directories survive a process restart, in-memory
// records do not.
type Workspace struct {
	root string
}

func NewWorkspace(root string) *Workspace {
	return &Workspace{root: strings.TrimSpace(root)}
}

func (w *Workspace) RootDir() string {
	return w.root
}

func (w *Workspace) JobDir(jobID string) string {
	return filepath.Join(w.root, jobID)
}

func (w *Workspace) OutputPath(jobID string) string {
	return filepath.Join(w.JobDir(jobID), CanonicalOutputName)
}

func (w *Workspace) DirectivePath(jobID string) string {
	return filepath.Join(w.JobDir(jobID), DirectiveFileName)
}

func (w *Workspace) EventsPath(jobID string) string {
	return filepath.Join(w.JobDir(jobID), EventsFileName)
}

// CreateJob persists the input payload and directive into a fresh job
// directory and returns the input path. filename is used only for its
// extension hint; the payload is always stored as input<ext> so a
// caller-supplied name can never collide with the reserved workspace
// files (output.mp4, directive.txt, events.jsonl) or the staging dir.
func (w *Workspace) CreateJob(jobID, filename string, input []byte, directive string) (string, error) {
	if strings.TrimSpace(w.root) == "" {
		return "", fmt.Errorf("workspace root dir is empty")
	}
	jobDir := w.JobDir(jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}

	inputPath := filepath.Join(jobDir, sanitizeFilename(filename))
	if err := os.WriteFile(inputPath, input, 0644); err != nil {
		return "", fmt.Errorf("write input payload: %w", err)
	}
	if err := os.WriteFile(w.DirectivePath(jobID), []byte(directive), 0644); err != nil {
		return "", fmt.Errorf("write directive: %w", err)
	}
	return inputPath, nil
}

// HasOutput reports whether the canonical output exists on disk for the
// job. Used by the status read path to self-heal records whose in-memory
// state lagged behind a completed retrieval.
func (w *Workspace) HasOutput(jobID string) bool {
	info, err := os.Stat(w.OutputPath(jobID))
	return err == nil && info.Mode().IsRegular()
}

// DirSummary is what can be reconstructed about a job from its directory
// alone, without the in-memory record.
type DirSummary struct {
	JobID     string    `json:"job_id"`
	Directive string    `json:"directive,omitempty"`
	HasOutput bool      `json:"has_output"`
	CreatedAt time.Time `json:"created_at"`
}

// ListDirs scans the workspace root and summarizes surviving job
// directories, newest first. In-memory records lost to a restart are not
// recoverable; this is the best available view for operators.
func (w *Workspace) ListDirs() ([]DirSummary, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read workspace root: %w", err)
	}

	out := make([]DirSummary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		jobID := entry.Name()
		sum := DirSummary{JobID: jobID, HasOutput: w.HasOutput(jobID)}
		if info, err := entry.Info(); err == nil {
			sum.CreatedAt = info.ModTime().UTC()
		}
		if b, err := os.ReadFile(w.DirectivePath(jobID)); err == nil {
			sum.Directive = string(b)
		}
		out = append(out, sum)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// sanitizeFilename reduces a caller-supplied filename to an extension
// hint on a fixed "input" stem. Path components are discarded, so the
// result can never escape the job directory, and the fixed stem never
// collides with output.mp4, directive.txt, or events.jsonl.
func sanitizeFilename(name string) string {
	ext := filepath.Ext(filepath.Base(strings.TrimSpace(name)))
	if ext == "" || ext == "." {
		ext = ".bin"
	}
	return "input" + ext
}
