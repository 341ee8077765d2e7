package remote

import (
	"errors"
	"fmt"
)

// Sentinel errors for platform operations.
var (
	// ErrNotConfigured indicates no usable credential was found in any
	// supported source. This is surfaced to callers as an actionable
	// message, never as a silent fallback.
	ErrNotConfigured = errors.New("platform credentials not configured")

	// ErrInvalidCredentials indicates the platform rejected the credential.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotFound indicates the requested kernel or bundle does not exist.
	ErrNotFound = errors.New("remote resource not found")

	// ErrThrottled indicates the request was rate limited by the platform.
	ErrThrottled = errors.New("request throttled")

	// ErrUnavailable indicates the platform service is unreachable or
	// returned a server-side failure. Status polls treat this as a soft
	// error and retry on the next interval.
	ErrUnavailable = errors.New("platform unavailable")
)

// PlatformError wraps platform-specific errors with operation context.
type PlatformError struct {
	// Op is the operation that failed (e.g. "CreateDataset", "KernelStatus").
	Op string

	// Slug is the bundle or kernel id, if applicable.
	Slug string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PlatformError) Error() string {
	if e.Slug != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Slug, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *PlatformError) Unwrap() error {
	return e.Err
}

// IsNotConfigured returns true if the error indicates missing credentials.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

// IsInvalidCredentials returns true if the error indicates the platform
// rejected the credential.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsNotFound returns true if the error indicates a missing remote resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsThrottled returns true if the error indicates platform rate limiting.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsUnavailable returns true if the error indicates the platform service
// is unreachable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsTransient reports whether a status-poll error should be retried on the
// next interval rather than failing the job.
func IsTransient(err error) bool {
	return IsThrottled(err) || IsUnavailable(err)
}
