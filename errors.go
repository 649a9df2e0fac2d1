package vidflow

import (
	"errors"

	vhttp "vidflow/http"
	"vidflow/internal/retry"
	"vidflow/internal/storage"
	"vidflow/task"
)

// Error handling types exported for library users.
//
// All error types support the standard error handling patterns:
//
// Using errors.Is() for sentinel errors:
//
//	if errors.Is(err, vidflow.ErrJobFailed) {
//		fmt.Println("Job failed")
//	}
//
// Using errors.As() for wrapped errors:
//
//	var submitErr *vidflow.SubmitError
//	if errors.As(err, &submitErr) {
//		fmt.Printf("Submitting %s failed at %s: %v\n", submitErr.Kind, submitErr.Op, submitErr.Err)
//	}

// Type aliases for convenient error handling.
type (
	// SubmitError describes a job that could not be started.
	SubmitError = task.SubmitError
	// PollError describes a failed status request.
	PollError = task.PollError
	// JobError carries the backend's failure message.
	JobError = task.JobError
	// ArtifactError describes a failed artifact download.
	ArtifactError = task.ArtifactError
	// HTTPError is a non-2xx response.
	HTTPError = vhttp.HTTPError
	// RetryableError wraps errors that occurred after retries were exhausted.
	RetryableError = retry.RetryableError
	// StorageError wraps errors during storage operations.
	StorageError = storage.StorageError
)

// Sentinel errors exported from sub-packages.
var (
	// ErrSubmitFailed indicates the job could not be started.
	ErrSubmitFailed = task.ErrSubmitFailed
	// ErrStatusCheck indicates a status request failed.
	ErrStatusCheck = task.ErrStatusCheck
	// ErrJobFailed indicates the backend reported the job as failed.
	ErrJobFailed = task.ErrJobFailed
	// ErrArtifactUnavailable indicates a finished job's file could not be fetched.
	ErrArtifactUnavailable = task.ErrArtifactUnavailable
	// ErrAttemptsExceeded indicates the job did not finish within the poll budget.
	ErrAttemptsExceeded = task.ErrAttemptsExceeded
	// ErrNotReady indicates an artifact was requested before the job succeeded.
	ErrNotReady = task.ErrNotReady

	// ErrUnauthorized indicates the access token was missing or rejected.
	ErrUnauthorized = vhttp.ErrUnauthorized
	// ErrCircuitOpen indicates the backend is failing and requests are paused.
	ErrCircuitOpen = vhttp.ErrCircuitOpen

	// Storage errors
	// ErrNotFound indicates an entity was not found in storage.
	ErrNotFound = storage.ErrNotFound
	// ErrStorageCorrupt indicates data corruption was detected.
	ErrStorageCorrupt = storage.ErrStorageCorrupt
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = storage.ErrLockTimeout
)

// IsRetryable determines if an error should be retried.
// Job failures and rejected credentials are final; a job is retried by
// submitting it again.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrJobFailed) || errors.Is(err, ErrUnauthorized) {
		return false
	}
	return retry.IsRetryable(err)
}
