package orchestrator

import (
	"errors"
	"time"

	"github.com/offloadhq/offload/pkg/jobstore"
)

// ErrNotReady signals that a job's result was requested before the job
// reached the done state. Distinct from jobstore.ErrNotFound.
var ErrNotReady = errors.New("job result is not ready")

// ExternalStatus is the caller-facing projection of a job record.
type ExternalStatus struct {
	JobID      string  `json:"job_id"`
	Status     string  `json:"status"`
	Directive  string  `json:"directive"`
	ElapsedSec float64 `json:"elapsed_sec"`
	Error      string  `json:"error,omitempty"`
	ResultRef  string  `json:"result_ref,omitempty"`
}

// Project derives the external status payload for a job.
//
// Before projecting, jobs not yet terminal are checked against the
// filesystem: if the canonical output file already exists in the job
// directory, the record is corrected to done. This self-healing read
// compensates for an in-memory completion write that was lost or is
// still in flight; it is not the primary completion signal.
func (o *Orchestrator) Project(jobID string) (*ExternalStatus, error) {
	rec, err := o.registry.Get(jobID)
	if err != nil {
		return nil, err
	}

	if !rec.State.Terminal() && o.workspace.HasOutput(jobID) {
		outputPath := o.workspace.OutputPath(jobID)
		if merr := o.registry.Mutate(jobID, func(r *jobstore.JobRecord) {
			if r.State.Terminal() {
				return
			}
			r.State = jobstore.JobStateDone
			r.OutputPath = outputPath
			r.Error = ""
		}); merr == nil {
			rec, err = o.registry.Get(jobID)
			if err != nil {
				return nil, err
			}
		}
	}

	return projectRecord(rec, time.Now().UTC()), nil
}

// ProjectAll returns projections for every known job, newest first.
func (o *Orchestrator) ProjectAll() []ExternalStatus {
	records := o.registry.List()
	now := time.Now().UTC()
	out := make([]ExternalStatus, 0, len(records))
	for i := range records {
		out = append(out, *projectRecord(&records[i], now))
	}
	return out
}

// ResultPath returns the canonical output path for a completed job.
// Returns ErrNotReady for known jobs that have not finished, and
// jobstore.ErrNotFound for unknown ids.
func (o *Orchestrator) ResultPath(jobID string) (string, error) {
	status, err := o.Project(jobID)
	if err != nil {
		return "", err
	}
	if status.Status != string(jobstore.JobStateDone) || status.ResultRef == "" {
		return "", ErrNotReady
	}
	return status.ResultRef, nil
}

func projectRecord(rec *jobstore.JobRecord, now time.Time) *ExternalStatus {
	return &ExternalStatus{
		JobID:      rec.JobID,
		Status:     string(rec.State),
		Directive:  rec.Directive,
		ElapsedSec: rec.Elapsed(now).Seconds(),
		Error:      rec.Error,
		ResultRef:  rec.OutputPath,
	}
}
