// Package remote defines abstractions for the external batch-compute
// platform that executes media-processing jobs.
//
// Platforms implement a minimal surface: upload a data bundle, push an
// executable kernel against it, query kernel status, and download output
// artifacts. Authentication is resolved by the implementation - callers
// should not handle credential material directly.
package remote

import "context"

// KernelState is the lifecycle state reported by the remote platform for
// a pushed kernel.
type KernelState string

const (
	KernelStateQueued   KernelState = "queued"
	KernelStateRunning  KernelState = "running"
	KernelStateComplete KernelState = "complete"
	KernelStateError    KernelState = "error"

	// KernelStateCancelAck is reported when the platform acknowledged a
	// cancellation of the kernel run.
	KernelStateCancelAck KernelState = "cancelAcknowledged"
)

// Terminal reports whether the state is final on the platform side.
func (s KernelState) Terminal() bool {
	return s == KernelStateComplete || s.Failed()
}

// Failed reports whether the state represents a definitive remote-side
// failure (as opposed to a transient query error, which is surfaced as an
// error return from Status).
func (s KernelState) Failed() bool {
	return s == KernelStateError || s == KernelStateCancelAck
}

// DatasetSpec describes a data bundle to create on the platform.
type DatasetSpec struct {
	// Slug is the fully qualified bundle id, "<account>/<bundle-name>".
	Slug string

	// Title is the human-readable bundle title.
	Title string

	// License is the bundle license identifier. Platforms require one
	// even for private bundles; the orchestrator uses "CC0-1.0".
	License string
}

// KernelSpec describes an executable unit to create or update and run.
type KernelSpec struct {
	// Slug is the fully qualified kernel id, "<account>/<kernel-name>".
	Slug string

	// Title is the human-readable kernel title.
	Title string

	// CodeFile is the entrypoint filename within the push payload.
	CodeFile string

	// Source is the entrypoint body.
	Source []byte

	// Language is the platform language tag (e.g. "python").
	Language string

	// DatasetSources lists bundle slugs mounted into the kernel run.
	DatasetSources []string

	// EnableGPU requests an accelerator for the run.
	EnableGPU bool

	// EnableInternet allows the run to reach the network.
	EnableInternet bool
}

// Platform abstracts the remote batch-compute service.
//
// Implementations should:
//   - Resolve credentials once at construction and fail fast when the
//     account is not configured
//   - Be safe for concurrent use (one orchestrator goroutine per job)
//   - Classify transport failures with the sentinel errors in this package
type Platform interface {
	// Account returns the platform account name that owns bundles and
	// kernels created through this client.
	Account() string

	// CreateDataset packages the contents of localDir as a new private
	// data bundle and uploads it. The call is atomic from the caller's
	// point of view: either the bundle exists with all files or an error
	// is returned.
	CreateDataset(ctx context.Context, localDir string, spec DatasetSpec) error

	// PushKernel creates or updates the named kernel and triggers a run.
	// It returns once the platform acknowledges receipt, not once the
	// run finishes.
	PushKernel(ctx context.Context, spec KernelSpec) error

	// KernelStatus returns the current lifecycle state of a previously
	// pushed kernel. Transport failures are returned as errors and must
	// not be confused with a definitive failure state.
	KernelStatus(ctx context.Context, slug string) (KernelState, error)

	// DownloadOutput retrieves all output artifacts of a completed
	// kernel into destDir. Artifacts may arrive as a single compressed
	// archive; extraction is the caller's concern.
	DownloadOutput(ctx context.Context, slug, destDir string) error

	// Close releases any resources held by the platform client.
	Close() error
}
