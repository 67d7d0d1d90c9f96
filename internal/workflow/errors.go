package workflow

import "errors"

var (
	// ErrNotObject indicates the document root is not a JSON object.
	ErrNotObject = errors.New("workflow: document root is not a JSON object")

	// ErrInvalidJSON indicates the document could not be parsed.
	ErrInvalidJSON = errors.New("workflow: invalid JSON")

	// ErrEmptyDocument indicates an empty input document.
	ErrEmptyDocument = errors.New("workflow: empty document")

	// ErrMergeFailed indicates a JSON merge patch could not be applied.
	ErrMergeFailed = errors.New("workflow: merge failed")
)
