package health

import (
	"context"
	"fmt"
	"time"
)

// Status represents the outcome of an external health probe.
type Status int

const (
	// StatusUnhealthy indicates the probe failed or reported false.
	// It is the zero value so that an unset Result never reads as healthy.
	StatusUnhealthy Status = iota
	// StatusHealthy indicates the probe succeeded.
	StatusHealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result contains the outcome of a health probe.
type Result struct {
	// Status is the health status.
	Status Status

	// Message provides additional context about the status.
	Message string

	// Details carries structured fields returned by the probe. The status
	// route merges them into its response body.
	Details map[string]any

	// Duration is how long the probe took.
	Duration time.Duration

	// Timestamp is when the probe completed.
	Timestamp time.Time

	// Error is set when the probe returned an error or panicked.
	Error error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{
		Status:    StatusHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{
		Status:    StatusUnhealthy,
		Message:   message,
		Error:     err,
		Timestamp: time.Now(),
	}
}

// IsHealthy reports whether the result is healthy.
func (r Result) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// WithDetails adds details to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithDuration sets the duration on a result.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}

// Checker is the interface for external health probes.
//
// Contract:
//   - Concurrency: Check may be called from the periodic monitor and the
//     status route at the same time.
//   - Errors: failures are reported through Result.Status and Result.Error.
type Checker interface {
	// Name returns the name of this checker.
	Name() string

	// Check performs the probe and returns the result.
	Check(ctx context.Context) Result
}

// CheckerFunc adapts an ordinary function to the Checker interface.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a new CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name returns the name of this checker.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check performs the health check.
func (f *CheckerFunc) Check(ctx context.Context) Result {
	return f.fn(ctx)
}

// Validate reports ErrNotCallable when the wrapped function is nil.
func (f *CheckerFunc) Validate() error {
	if f == nil || f.fn == nil {
		return ErrNotCallable
	}
	return nil
}

// BoolChecker wraps a probe that answers yes or no.
// A nil error with false, or any non-nil error, yields an unhealthy result.
func BoolChecker(name string, fn func(context.Context) (bool, error)) *CheckerFunc {
	if fn == nil {
		return NewCheckerFunc(name, nil)
	}
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		ok, err := fn(ctx)
		if err != nil {
			return Unhealthy("probe returned an error", err)
		}
		if !ok {
			return Unhealthy("probe reported unhealthy", ErrCheckFailed)
		}
		return Healthy("ok")
	})
}

// DetailsChecker wraps a probe that returns structured fields.
// A nil map is treated as unhealthy, matching a falsy probe result.
func DetailsChecker(name string, fn func(context.Context) (map[string]any, error)) *CheckerFunc {
	if fn == nil {
		return NewCheckerFunc(name, nil)
	}
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		details, err := fn(ctx)
		if err != nil {
			return Unhealthy("probe returned an error", err)
		}
		if details == nil {
			return Unhealthy("probe reported unhealthy", ErrCheckFailed)
		}
		return Healthy("ok").WithDetails(details)
	})
}

// Validate checks that c can be invoked. Checkers that implement
// `Validate() error` are asked directly.
func Validate(c Checker) error {
	if c == nil {
		return ErrNotCallable
	}
	if v, ok := c.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

// Run invokes the checker, recording duration and timestamp.
// A panic inside the probe is recovered and reported as unhealthy.
func Run(ctx context.Context, c Checker) (result Result) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = Unhealthy("probe panicked", fmt.Errorf("%w: %v", ErrCheckPanicked, rec))
		}
		result.Duration = time.Since(start)
		if result.Timestamp.IsZero() {
			result.Timestamp = time.Now()
		}
	}()
	return c.Check(ctx)
}
