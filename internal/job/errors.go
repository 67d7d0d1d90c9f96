package job

import "errors"

var (
	// ErrNotFound indicates the job does not exist.
	ErrNotFound = errors.New("job: not found")

	// ErrInvalidTransition indicates a status change that the
	// queued -> running -> done/failed lifecycle does not allow.
	ErrInvalidTransition = errors.New("job: invalid status transition")

	// ErrMissingKind indicates a job without a kind.
	ErrMissingKind = errors.New("job: kind is required")
)
