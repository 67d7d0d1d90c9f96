package bridge

import "errors"

// Domain-specific errors for bridge operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTimeout is returned when no result appeared within the deadline.
	ErrTimeout = errors.New("bridge: timed out waiting for result")

	// ErrUnknownAction is returned by the dispatcher for unregistered actions.
	ErrUnknownAction = errors.New("bridge: unknown action")

	// ErrDuplicateAction is returned when registering an action twice.
	ErrDuplicateAction = errors.New("bridge: action already registered")

	// ErrMalformedCommand is returned for command files that fail to parse.
	ErrMalformedCommand = errors.New("bridge: malformed command file")

	// ErrEmptyAction is returned for commands with no action field.
	ErrEmptyAction = errors.New("bridge: command has empty action")
)
