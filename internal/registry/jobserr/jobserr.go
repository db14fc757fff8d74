// Package jobserr defines the sentinel errors the registry surfaces to
// callers, in the teacher's style (internal/pkg/errors): plain sentinels,
// wrapped with %w at the point of failure and mapped to HTTP status codes
// at the httpapi boundary.
package jobserr

import "errors"

var (
	// ErrNotFound is returned when a job id is unknown.
	ErrNotFound = errors.New("job not found")
	// ErrConflict is returned when creating a job whose id already exists.
	ErrConflict = errors.New("job already exists")
	// ErrIllegalTransition is returned when the target stage isn't reachable
	// from the job's current stage.
	ErrIllegalTransition = errors.New("illegal transition")
	// ErrPipelinePaused is returned for non-terminal transitions while paused.
	ErrPipelinePaused = errors.New("pipeline is paused")
	// ErrContended is returned when a claim loses a race to another worker.
	ErrContended = errors.New("job claim contended")
	// ErrTerminal is returned for a non-idempotent mutation of a terminal job.
	ErrTerminal = errors.New("job is in a terminal stage")
	// ErrUnavailable is returned on store/bus timeouts; callers may retry.
	ErrUnavailable = errors.New("registry temporarily unavailable")
	// ErrBadRequest is returned for missing or malformed input fields.
	ErrBadRequest = errors.New("bad request")
	// ErrNotRestartable is returned when retry is attempted on a non-terminal
	// or non-failed/canceled job.
	ErrNotRestartable = errors.New("job is not in a retryable stage")
	// ErrNotCancelable is returned when cancel is attempted on a job that is
	// already terminal and not canceled (i.e. complete).
	ErrNotCancelable = errors.New("job is already terminal and cannot be canceled")
)
