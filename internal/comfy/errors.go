package comfy

import "errors"

var (
	// ErrUnavailable indicates the server could not be reached.
	ErrUnavailable = errors.New("comfy: server unavailable")

	// ErrBadStatus indicates the server returned a non-success HTTP status.
	ErrBadStatus = errors.New("comfy: unexpected status")

	// ErrRejected indicates the server rejected a submitted prompt.
	ErrRejected = errors.New("comfy: prompt rejected")

	// ErrNotReady indicates the server did not become ready in time.
	ErrNotReady = errors.New("comfy: server not ready")

	// ErrMonitorClosed indicates the progress websocket closed.
	ErrMonitorClosed = errors.New("comfy: monitor connection closed")
)
