// Package joblog provides the per-job JSONL event log.
//
// Each line is a self-contained typed record envelope, written into the
// job directory as events.jsonl. The log is operator-facing: it records
// phase transitions, remote status observations, errors, and the final
// summary for one job.
package joblog

import (
	"encoding/json"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: offload.<type>.v<version>
const (
	// TypePhase identifies job phase transition records.
	TypePhase = "offload.phase.v1"

	// TypeRemoteStatus identifies remote status observation records.
	TypeRemoteStatus = "offload.remote_status.v1"

	// TypeError identifies error records.
	TypeError = "offload.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "offload.summary.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g. "offload.phase.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID is the job this record belongs to.
	JobID string `json:"job_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// PhaseRecord is the data payload for phase transitions.
type PhaseRecord struct {
	// From is the previous job state ("" for the initial transition).
	From string `json:"from,omitempty"`

	// To is the new job state.
	To string `json:"to"`

	// Detail carries optional context, e.g. the bundle slug recorded at
	// the upload transition.
	Detail string `json:"detail,omitempty"`
}

// RemoteStatusRecord is the data payload for one poll observation.
type RemoteStatusRecord struct {
	// Slug is the kernel the status belongs to.
	Slug string `json:"slug"`

	// Status is the platform-reported state, or empty when the poll
	// itself failed.
	Status string `json:"status,omitempty"`

	// Transient carries the soft error message for failed polls.
	Transient string `json:"transient,omitempty"`
}

// ErrorRecord is the data payload for job failures.
type ErrorRecord struct {
	// Code classifies the failure (e.g. "UPLOAD_FAILED", "TIMEOUT").
	Code string `json:"code"`

	// Message is the human-readable failure description.
	Message string `json:"message"`
}

// SummaryRecord is the data payload for the final record of a job.
type SummaryRecord struct {
	// FinalState is the terminal job state.
	FinalState string `json:"final_state"`

	// OutputPath is the canonical result location, when the job succeeded.
	OutputPath string `json:"output_path,omitempty"`

	// Duration is the elapsed wall-clock time in nanoseconds.
	Duration time.Duration `json:"duration"`

	// DurationHuman is the elapsed time in human-readable form.
	DurationHuman string `json:"duration_human"`

	// Polls is the number of remote status queries performed.
	Polls int64 `json:"polls"`
}
