package runner

import "errors"

var (
	// ErrScenarioPanic is returned when a scenario panicked while running.
	ErrScenarioPanic = errors.New("scenario panicked")

	// ErrNoRunFunc is returned for a scenario without a run function.
	ErrNoRunFunc = errors.New("scenario has no run function")

	// ErrInvalidFilter is returned when a scenario filter does not compile.
	ErrInvalidFilter = errors.New("invalid scenario filter")

	// ErrUnexpectedSuccess is returned when an operation that is expected to
	// fail succeeded.
	ErrUnexpectedSuccess = errors.New("operation unexpectedly succeeded")
)
