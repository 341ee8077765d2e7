// Package orchestrator drives media-processing jobs through their full
// lifecycle against a remote batch-compute platform.
//
// A job moves uploading -> running -> done, with error reachable from any
// state. Each submitted job runs on its own goroutine: stage and upload
// the input bundle, wait out the platform's indexing delay, push the
// kernel, poll for completion under a wall-clock budget, and retrieve the
// output archive. Submission itself never blocks on remote I/O.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/offloadhq/offload/pkg/archive"
	"github.com/offloadhq/offload/pkg/joblog"
	"github.com/offloadhq/offload/pkg/jobstore"
	"github.com/offloadhq/offload/pkg/remote"
)

// Config configures orchestrator behavior.
type Config struct {
	// GraceWait is the pause between upload acknowledgment and the kernel
	// push, covering the platform's eventual-consistency delay when
	// indexing a new bundle. Default: 15s.
	GraceWait time.Duration

	// PollInterval is the spacing between remote status queries.
	// Default: 30s.
	PollInterval time.Duration

	// PollBudget is the wall-clock ceiling on the polling loop. A job
	// that has not reached a terminal remote status within the budget
	// ends in error. Default: 60m.
	PollBudget time.Duration

	// OutputPattern is the glob used to locate the produced output among
	// retrieved files. Default: "output*".
	OutputPattern string

	// RateLimit is the maximum remote API requests per second across all
	// jobs. Zero means unlimited. Default: 0.
	RateLimit float64

	// EnableGPU requests an accelerator for kernel runs. Default: true.
	EnableGPU bool

	// EnableInternet allows kernel runs outbound network access.
	// Default: true.
	EnableInternet bool
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		GraceWait:      15 * time.Second,
		PollInterval:   30 * time.Second,
		PollBudget:     60 * time.Minute,
		OutputPattern:  archive.DefaultOutputPattern,
		RateLimit:      0,
		EnableGPU:      true,
		EnableInternet: true,
	}
}

// Archiver copies a completed job output to long-term storage and
// returns a storage reference. Archival is best effort: a failure is
// logged and never changes the job's state.
type Archiver interface {
	ArchiveOutput(ctx context.Context, jobID, outputPath string) (string, error)
}

// Orchestrator owns the job registry and the per-job background
// goroutines. Construct one at process start and inject it into the
// request-handling layer.
type Orchestrator struct {
	registry  *jobstore.Registry
	workspace *jobstore.Workspace
	platform  remote.Platform
	config    Config
	logger    *zap.Logger
	archiver  Archiver // optional

	// Rate limiter shared by all jobs (nil if unlimited)
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an orchestrator.
//
// The platform client must already be authenticated; construction-time
// credential failures belong to the caller so that submission never fails
// on remote-side issues.
func New(reg *jobstore.Registry, ws *jobstore.Workspace, p remote.Platform, logger *zap.Logger, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.GraceWait <= 0 {
		cfg.GraceWait = def.GraceWait
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PollBudget <= 0 {
		cfg.PollBudget = def.PollBudget
	}
	if cfg.OutputPattern == "" {
		cfg.OutputPattern = def.OutputPattern
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		registry:  reg,
		workspace: ws,
		platform:  p,
		config:    cfg,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	if cfg.RateLimit > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return o
}

// WithArchiver sets an optional archiver for completed outputs. Returns
// the orchestrator for chaining.
func (o *Orchestrator) WithArchiver(a Archiver) *Orchestrator {
	o.archiver = a
	return o
}

// Registry returns the job registry backing this orchestrator.
func (o *Orchestrator) Registry() *jobstore.Registry {
	return o.registry
}

// Workspace returns the on-disk job workspace.
func (o *Orchestrator) Workspace() *jobstore.Workspace {
	return o.workspace
}

// Submit persists the input payload, creates the job record, and launches
// the background goroutine that drives the job to a terminal state.
//
// Submit returns the job id as soon as local persistence succeeds; it
// never blocks on remote I/O. Malformed submissions (empty input or
// directive) are rejected synchronously.
func (o *Orchestrator) Submit(ctx context.Context, input []byte, directive, filename string, params map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(input) == 0 {
		return "", fmt.Errorf("input payload is empty")
	}
	if strings.TrimSpace(directive) == "" {
		return "", fmt.Errorf("directive is required")
	}

	jobID := newJobID()
	inputPath, err := o.workspace.CreateJob(jobID, filename, input, directive)
	if err != nil {
		return "", fmt.Errorf("persist job input: %w", err)
	}

	rec := &jobstore.JobRecord{
		JobID:     jobID,
		State:     jobstore.JobStateUploading,
		Directive: directive,
		InputPath: inputPath,
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.registry.Put(rec); err != nil {
		return "", err
	}

	o.logger.Info("job submitted",
		zap.String("job_id", jobID),
		zap.String("filename", filename),
		zap.Int("input_bytes", len(input)))

	o.wg.Add(1)
	go o.run(jobID)

	return jobID, nil
}

// Shutdown cancels all in-flight jobs and waits for their goroutines to
// finish, or until ctx expires.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until all launched job goroutines have finished. Intended
// for one-shot CLI use where the process should exit after its single job
// completes.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// run drives one job to a terminal state. It is the only writer of the
// job's record during execution.
func (o *Orchestrator) run(jobID string) {
	defer o.wg.Done()

	log := o.logger.With(zap.String("job_id", jobID))

	events := o.openEvents(jobID, log)
	defer func() { _ = events.Close() }()

	// A panic anywhere below must not take down the process or leave the
	// job stuck in a non-terminal state.
	defer func() {
		if r := recover(); r != nil {
			log.Error("job goroutine panicked", zap.Any("panic", r))
			o.fail(jobID, events, log, fmt.Sprintf("internal error: %v", r))
		}
	}()

	rec, err := o.registry.Get(jobID)
	if err != nil {
		log.Error("job record missing at start", zap.Error(err))
		return
	}

	jobDir := o.workspace.JobDir(jobID)
	datasetSlug := o.platform.Account() + "/offload-data-" + jobID
	kernelSlug := o.platform.Account() + "/offload-job-" + jobID

	// Upload phase
	bundleDir, err := stageBundle(jobDir, rec.InputPath, rec.Directive, rec.Params)
	if err != nil {
		o.fail(jobID, events, log, fmt.Sprintf("upload failed: %v", err))
		return
	}

	if err := o.waitForRateLimit(); err != nil {
		o.fail(jobID, events, log, fmt.Sprintf("upload failed: %v", err))
		return
	}
	if err := o.platform.CreateDataset(o.ctx, bundleDir, remote.DatasetSpec{
		Slug:    datasetSlug,
		Title:   "Offload job " + jobID + " input",
		License: "CC0-1.0",
	}); err != nil {
		o.fail(jobID, events, log, uploadFailureMessage(err))
		return
	}

	if err := o.registry.Mutate(jobID, func(r *jobstore.JobRecord) {
		r.DatasetSlug = datasetSlug
	}); err != nil {
		log.Error("record bundle ref", zap.Error(err))
	}
	log.Info("bundle uploaded", zap.String("dataset_slug", datasetSlug))

	// The platform indexes new bundles asynchronously; pushing a kernel
	// against an unindexed bundle fails.
	if err := o.sleep(o.config.GraceWait); err != nil {
		o.fail(jobID, events, log, fmt.Sprintf("upload failed: %v", err))
		return
	}

	o.transition(jobID, events, log, jobstore.JobStateRunning, "")

	// Execution phase
	if err := o.waitForRateLimit(); err != nil {
		o.fail(jobID, events, log, fmt.Sprintf("remote execution failed: %v", err))
		return
	}
	if err := o.platform.PushKernel(o.ctx, remote.KernelSpec{
		Slug:           kernelSlug,
		Title:          "Offload job " + jobID,
		CodeFile:       entrypointName,
		Source:         []byte(kernelSource),
		Language:       kernelLanguage,
		DatasetSources: []string{datasetSlug},
		EnableGPU:      o.config.EnableGPU,
		EnableInternet: o.config.EnableInternet,
	}); err != nil {
		o.fail(jobID, events, log, fmt.Sprintf("remote execution failed: %v", err))
		return
	}

	if err := o.registry.Mutate(jobID, func(r *jobstore.JobRecord) {
		r.KernelSlug = kernelSlug
	}); err != nil {
		log.Error("record kernel ref", zap.Error(err))
	}
	log.Info("kernel pushed", zap.String("kernel_slug", kernelSlug))

	polls, ok := o.poll(jobID, kernelSlug, events, log)
	if !ok {
		return
	}

	// Retrieval phase: remote execution succeeded, so any failure from
	// here on is reported distinctly as a retrieval failure.
	if err := o.retrieve(jobID, kernelSlug, jobDir); err != nil {
		o.fail(jobID, events, log, fmt.Sprintf("result retrieval failed: %v", err))
		return
	}

	outputPath := o.workspace.OutputPath(jobID)
	completed := false
	if err := o.registry.Mutate(jobID, func(r *jobstore.JobRecord) {
		if r.State == jobstore.JobStateError {
			return
		}
		r.State = jobstore.JobStateDone
		r.OutputPath = outputPath
		r.Error = ""
		completed = true
	}); err != nil {
		log.Error("record completion", zap.Error(err))
		return
	}
	if !completed {
		return
	}

	_ = events.WritePhase(&joblog.PhaseRecord{From: string(jobstore.JobStateRunning), To: string(jobstore.JobStateDone)})
	o.writeSummary(jobID, events, polls)
	log.Info("job done", zap.String("output", outputPath), zap.Int("polls", polls))

	if o.archiver != nil {
		key, err := o.archiver.ArchiveOutput(o.ctx, jobID, outputPath)
		if err != nil {
			log.Warn("output archival failed", zap.Error(err))
		} else {
			log.Info("output archived", zap.String("key", key))
		}
	}
}

// poll queries remote status until a terminal status is observed or the
// wall-clock budget runs out. Returns the poll count and whether the
// remote run completed successfully; on false the job record is already
// terminal.
func (o *Orchestrator) poll(jobID, kernelSlug string, events joblog.Writer, log *zap.Logger) (int, bool) {
	deadline := time.Now().Add(o.config.PollBudget)
	polls := 0

	for {
		if err := o.sleep(o.config.PollInterval); err != nil {
			o.fail(jobID, events, log, fmt.Sprintf("remote execution failed: %v", err))
			return polls, false
		}
		if time.Now().After(deadline) {
			o.fail(jobID, events, log, fmt.Sprintf(
				"timed out after %s waiting for remote completion", o.config.PollBudget))
			return polls, false
		}

		if err := o.waitForRateLimit(); err != nil {
			o.fail(jobID, events, log, fmt.Sprintf("remote execution failed: %v", err))
			return polls, false
		}
		state, err := o.platform.KernelStatus(o.ctx, kernelSlug)
		polls++
		if err != nil {
			// A failed query is a soft error: stay in running and try
			// again on the next interval.
			log.Warn("status query failed",
				zap.Int("polls", polls),
				zap.Bool("transient", remote.IsTransient(err)),
				zap.Error(err))
			_ = events.WriteRemoteStatus(&joblog.RemoteStatusRecord{
				Slug:      kernelSlug,
				Status:    "query-failed",
				Transient: err.Error(),
			})
			continue
		}

		_ = events.WriteRemoteStatus(&joblog.RemoteStatusRecord{
			Slug:   kernelSlug,
			Status: string(state),
		})

		switch {
		case state == remote.KernelStateComplete:
			return polls, true
		case state.Failed():
			o.fail(jobID, events, log, fmt.Sprintf("remote execution failed with status %q", state))
			return polls, false
		default:
			log.Debug("remote still running", zap.String("status", string(state)), zap.Int("polls", polls))
		}
	}
}

// retrieve downloads the output archive, extracts it, and renames the
// matching file to the canonical output name inside the job directory.
func (o *Orchestrator) retrieve(jobID, kernelSlug, jobDir string) error {
	if err := o.waitForRateLimit(); err != nil {
		return err
	}
	if err := o.platform.DownloadOutput(o.ctx, kernelSlug, jobDir); err != nil {
		return err
	}
	if _, err := archive.ExtractAll(jobDir); err != nil {
		return err
	}
	if _, err := archive.LocateOutput(jobDir, o.config.OutputPattern, jobstore.CanonicalOutputName); err != nil {
		return err
	}
	return nil
}

// transition moves a non-terminal job to the given state and logs the
// phase change.
func (o *Orchestrator) transition(jobID string, events joblog.Writer, log *zap.Logger, to jobstore.JobState, detail string) {
	var from jobstore.JobState
	changed := false
	err := o.registry.Mutate(jobID, func(r *jobstore.JobRecord) {
		from = r.State
		if r.State.Terminal() {
			return
		}
		r.State = to
		changed = true
	})
	if err != nil {
		log.Error("state transition", zap.Error(err))
		return
	}
	if !changed {
		return
	}
	_ = events.WritePhase(&joblog.PhaseRecord{From: string(from), To: string(to), Detail: detail})
	log.Info("phase", zap.String("from", string(from)), zap.String("to", string(to)))
}

// fail moves the job to the terminal error state with the given message.
// Already-terminal records are left untouched.
func (o *Orchestrator) fail(jobID string, events joblog.Writer, log *zap.Logger, msg string) {
	var from jobstore.JobState
	changed := false
	err := o.registry.Mutate(jobID, func(r *jobstore.JobRecord) {
		if r.State.Terminal() {
			from = r.State
			return
		}
		from = r.State
		r.State = jobstore.JobStateError
		r.Error = msg
		r.OutputPath = ""
		changed = true
	})
	if err != nil {
		log.Error("record failure", zap.Error(err), zap.String("failure", msg))
		return
	}
	if !changed {
		return
	}
	_ = events.WriteError(&joblog.ErrorRecord{Code: "JOB_FAILED", Message: msg})
	_ = events.WritePhase(&joblog.PhaseRecord{From: string(from), To: string(jobstore.JobStateError), Detail: msg})
	o.writeSummary(jobID, events, 0)
	log.Error("job failed", zap.String("error", msg))
}

func (o *Orchestrator) writeSummary(jobID string, events joblog.Writer, polls int) {
	rec, err := o.registry.Get(jobID)
	if err != nil {
		return
	}
	elapsed := rec.Elapsed(time.Now().UTC())
	_ = events.WriteSummary(&joblog.SummaryRecord{
		FinalState:    string(rec.State),
		OutputPath:    rec.OutputPath,
		Duration:      elapsed,
		DurationHuman: elapsed.Round(time.Millisecond).String(),
		Polls:         int64(polls),
	})
}

// openEvents opens the per-job event log, falling back to a discarding
// writer. Logging must never fail a job.
func (o *Orchestrator) openEvents(jobID string, log *zap.Logger) joblog.Writer {
	events, err := joblog.OpenFile(o.workspace.EventsPath(jobID), jobID)
	if err != nil {
		log.Warn("open event log", zap.Error(err))
		return joblog.Discard{}
	}
	return events
}

// sleep pauses for d or until the orchestrator is shut down.
func (o *Orchestrator) sleep(d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-o.ctx.Done():
		return o.ctx.Err()
	case <-timer.C:
		return nil
	}
}

// waitForRateLimit blocks until the shared limiter allows a remote call.
// Returns immediately if rate limiting is disabled.
func (o *Orchestrator) waitForRateLimit() error {
	if o.limiter == nil {
		return nil
	}
	return o.limiter.Wait(o.ctx)
}

// uploadFailureMessage maps an upload-phase error to an actionable,
// user-visible failure message.
func uploadFailureMessage(err error) string {
	switch {
	case remote.IsNotConfigured(err):
		return fmt.Sprintf("upload failed: platform credentials are not configured: %v", err)
	case remote.IsInvalidCredentials(err):
		return fmt.Sprintf("upload failed: platform rejected the credentials: %v", err)
	default:
		return fmt.Sprintf("upload failed: %v", err)
	}
}

// newJobID returns a short opaque job identifier.
func newJobID() string {
	return strings.SplitN(uuid.New().String(), "-", 2)[0]
}
