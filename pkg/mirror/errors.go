package mirror

import (
	"errors"
	"fmt"
)

// Sentinel errors for mirror operation failures. Wrap these with
// MirrorError for context; check with errors.Is.
var (
	// ErrBucketNotFound indicates the archive bucket does not exist.
	ErrBucketNotFound = errors.New("archive bucket not found")

	// ErrAccessDenied indicates insufficient permissions on the bucket.
	ErrAccessDenied = errors.New("access denied to archive bucket")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid archive credentials")

	// ErrThrottled indicates the store rejected the request due to rate
	// limiting.
	ErrThrottled = errors.New("archive store throttled the request")

	// ErrUnavailable indicates the store is temporarily unavailable.
	ErrUnavailable = errors.New("archive store unavailable")
)

// MirrorError wraps a mirror operation failure with context.
type MirrorError struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *MirrorError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("mirror %s: bucket %s, key %s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("mirror %s: bucket %s: %v", e.Op, e.Bucket, e.Err)
}

func (e *MirrorError) Unwrap() error {
	return e.Err
}
