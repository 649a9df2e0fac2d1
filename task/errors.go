package task

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is against these; the concrete types below carry
// the details.
var (
	// ErrSubmitFailed indicates the job could not be started.
	ErrSubmitFailed = errors.New("task submission failed")
	// ErrStatusCheck indicates a status request failed in transport or decoding.
	ErrStatusCheck = errors.New("status check failed")
	// ErrJobFailed indicates the backend reported the job as failed.
	ErrJobFailed = errors.New("task failed")
	// ErrArtifactUnavailable indicates a finished job's artifact could not be fetched.
	ErrArtifactUnavailable = errors.New("artifact unavailable")
	// ErrAttemptsExceeded indicates the poll budget ran out before a terminal state.
	ErrAttemptsExceeded = errors.New("task did not finish in time")
	// ErrNotReady indicates an artifact was requested before SUCCESS.
	ErrNotReady = errors.New("task has not succeeded")
	// ErrArtifactReleased indicates the artifact payload was already handed off.
	ErrArtifactReleased = errors.New("artifact already released")
	// ErrTrackerClosed is returned by Track after Close.
	ErrTrackerClosed = errors.New("tracker closed")
	// ErrSuperseded is returned by Wait when tracking moved to another handle.
	ErrSuperseded = errors.New("tracking superseded")
)

// SubmitError describes a failed submission.
type SubmitError struct {
	Kind string // workflow
	Op   string // "encode", "request", "decode"
	Err  error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *SubmitError) Is(target error) bool { return target == ErrSubmitFailed }

func (e *SubmitError) Unwrap() error { return e.Err }

// PollError describes a failed status request.
type PollError struct {
	TaskID string
	Err    error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("status check failed: %v", e.Err)
}

func (e *PollError) Is(target error) bool { return target == ErrStatusCheck }

func (e *PollError) Unwrap() error { return e.Err }

// JobError carries the backend's failure message verbatim.
type JobError struct {
	TaskID  string
	Message string
}

func (e *JobError) Error() string { return e.Message }

func (e *JobError) Is(target error) bool { return target == ErrJobFailed }

// ArtifactError describes a failed artifact retrieval.
type ArtifactError struct {
	TaskID string
	Err    error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("artifact for task %s unavailable: %v", e.TaskID, e.Err)
}

func (e *ArtifactError) Is(target error) bool { return target == ErrArtifactUnavailable }

func (e *ArtifactError) Unwrap() error { return e.Err }
