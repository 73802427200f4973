package health

import "errors"

var (
	// ErrCheckFailed indicates a probe reported unhealthy without an error of its own.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout indicates a component probe did not finish in time.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckPanicked indicates a probe panicked.
	ErrCheckPanicked = errors.New("health: check panicked")

	// ErrNotCallable indicates a probe was configured without a function to call.
	ErrNotCallable = errors.New("health: checker is not callable")

	// ErrNoCheckers indicates no checkers are registered.
	ErrNoCheckers = errors.New("health: no checkers registered")
)
