// Package jobstore holds the process-wide job registry and the on-disk
// workspace layout for job inputs and outputs.
//
// The registry is intentionally in-memory only: a process restart loses
// job records even though job directories and completed outputs survive
// on disk. Records are never evicted for the life of the process.
package jobstore

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound indicates the queried job id is unknown to the registry.
var ErrNotFound = errors.New("job not found")

// Registry is the single source of truth for job state visible to callers.
//
// All access is serialized behind one mutex. Callers never hold a
// reference to the live record: Get and List return copies, and Mutate
// applies changes under the lock. Mutation functions must not block on
// I/O - network calls happen outside the lock on the job's own goroutine.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*JobRecord
}

// NewRegistry creates an empty registry. Construct once at process start
// and inject it into the handling layer and the background goroutines.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*JobRecord)}
}

// Put registers a new record. The job id must not already exist: ids are
// never reused within a process lifetime.
func (r *Registry) Put(record *JobRecord) error {
	if record == nil {
		return fmt.Errorf("job record is nil")
	}
	jobID := strings.TrimSpace(record.JobID)
	if jobID == "" {
		return fmt.Errorf("job_id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[jobID]; exists {
		return fmt.Errorf("job %s already registered", jobID)
	}
	clone := *record
	r.jobs[jobID] = &clone
	return nil
}

// Get returns a copy of the record, or ErrNotFound.
func (r *Registry) Get(jobID string) (*JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

// List returns copies of all records, newest first.
func (r *Registry) List() []JobRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]JobRecord, 0, len(r.jobs))
	for _, rec := range r.jobs {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].JobID < out[j].JobID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Mutate applies fn to the record under the registry lock.
//
// This is the single mutation entry point: the background goroutine's
// phase transitions and the read path's self-healing write both go
// through here, so concurrent field updates can never interleave into a
// torn record. Returns ErrNotFound for unknown ids.
func (r *Registry) Mutate(jobID string, fn func(*JobRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	fn(rec)
	return nil
}
