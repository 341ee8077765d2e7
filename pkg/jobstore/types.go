package jobstore

import "time"

// JobState is the lifecycle state of a media-processing job.
//
// States move forward only: uploading -> running -> done, with error
// reachable from any non-terminal state. done and error are terminal.
type JobState string

const (
	JobStateUploading JobState = "uploading"
	JobStateRunning   JobState = "running"
	JobStateDone      JobState = "done"
	JobStateError     JobState = "error"
)

// Terminal reports whether no further transition occurs from the state.
func (s JobState) Terminal() bool {
	return s == JobStateDone || s == JobStateError
}

// JobRecord is the in-memory record for one submitted job.
//
// A record is created synchronously at submission and mutated exclusively
// by that job's background goroutine, plus the one opportunistic
// self-healing write on the status read path. All mutation goes through
// Registry.Mutate.
type JobRecord struct {
	JobID string   `json:"job_id"`
	State JobState `json:"state"`

	// Directive is the user-supplied text instruction. Immutable after
	// creation.
	Directive string `json:"directive"`

	// InputPath is the persisted input payload location. Immutable after
	// creation.
	InputPath string `json:"input_path"`

	// Params are optional structured parameters staged into the bundle
	// alongside the input and directive. Immutable after creation.
	Params map[string]any `json:"params,omitempty"`

	// DatasetSlug is the uploaded remote bundle reference. Set once
	// during the upload phase, never changed afterwards.
	DatasetSlug string `json:"dataset_slug,omitempty"`

	// KernelSlug is the executable unit the job was pushed to.
	KernelSlug string `json:"kernel_slug,omitempty"`

	// OutputPath is the retrieved output artifact. Non-empty if and only
	// if State is done.
	OutputPath string `json:"output_path,omitempty"`

	// Error is a human-readable failure description. Non-empty if and
	// only if State is error.
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Elapsed returns the wall-clock time since the job was created.
func (r *JobRecord) Elapsed(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}
