package orchestrator

import "errors"

var (
	// ErrNoWorkflow indicates no workflow template path is configured
	// for the stylize stage.
	ErrNoWorkflow = errors.New("orchestrator: no workflow template configured")

	// ErrNoMoviePath indicates the bridge result did not include a
	// rendered movie path.
	ErrNoMoviePath = errors.New("orchestrator: bridge result missing movie_path")

	// ErrMissingLevel indicates a one-click request without a level path.
	ErrMissingLevel = errors.New("orchestrator: level_path is required")
)
