package jobstore

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRegistry_PutGetRoundTrip(t *testing.T) {
	r := NewRegistry()

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	rec := &JobRecord{
		JobID:     "job-1",
		State:     JobStateUploading,
		Directive: "oil painting style",
		InputPath: "/tmp/jobs/job-1/video.mp4",
		CreatedAt: now,
	}

	if err := r.Put(rec); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := r.Get("job-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.JobID != "job-1" || got.State != JobStateUploading {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Get must return a copy: mutating it does not touch the registry.
	got.State = JobStateError
	again, err := r.Get("job-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if again.State != JobStateUploading {
		t.Fatalf("registry record mutated through a Get copy")
	}
}

func TestRegistry_PutRejectsDuplicateID(t *testing.T) {
	r := NewRegistry()
	rec := &JobRecord{JobID: "job-1", State: JobStateUploading, CreatedAt: time.Now()}
	if err := r.Put(rec); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := r.Put(rec); err == nil {
		t.Fatalf("expected duplicate id to be rejected")
	}
}

func TestRegistry_GetUnknownID(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_MutateAppliesUnderLock(t *testing.T) {
	r := NewRegistry()
	if err := r.Put(&JobRecord{JobID: "job-1", State: JobStateUploading, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	err := r.Mutate("job-1", func(rec *JobRecord) {
		rec.State = JobStateRunning
		rec.DatasetSlug = "tester/offload-video-job-1"
	})
	if err != nil {
		t.Fatalf("Mutate() error: %v", err)
	}

	got, err := r.Get("job-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.State != JobStateRunning || got.DatasetSlug != "tester/offload-video-job-1" {
		t.Fatalf("mutation not applied: %+v", got)
	}

	if err := r.Mutate("nope", func(*JobRecord) {}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestRegistry_ConcurrentMutateDoesNotTear(t *testing.T) {
	r := NewRegistry()
	if err := r.Put(&JobRecord{JobID: "job-1", State: JobStateUploading, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Mutate("job-1", func(rec *JobRecord) {
				// Write a consistent pair; readers must never observe a
				// mismatch.
				rec.State = JobStateDone
				rec.OutputPath = "/tmp/jobs/job-1/output.mp4"
			})
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := r.Get("job-1")
			if err != nil {
				return
			}
			if rec.State == JobStateDone && rec.OutputPath == "" {
				t.Errorf("torn record observed: %+v", rec)
			}
		}()
	}
	wg.Wait()
}

func TestRegistry_ListNewestFirst(t *testing.T) {
	r := NewRegistry()
	t1 := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	if err := r.Put(&JobRecord{JobID: "job-old", State: JobStateDone, CreatedAt: t1}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := r.Put(&JobRecord{JobID: "job-new", State: JobStateUploading, CreatedAt: t2}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got := r.List()
	if len(got) != 2 {
		t.Fatalf("unexpected job count: %d", len(got))
	}
	if got[0].JobID != "job-new" {
		t.Fatalf("expected newest first, got[0]=%q", got[0].JobID)
	}
}
