package pressure

import (
	"errors"
	"net/http"
)

// Configuration errors returned by New.
var (
	// ErrProbeNotCallable indicates Config.HealthCheck cannot be invoked.
	ErrProbeNotCallable = errors.New("pressure: health check is not callable")

	// ErrProbeUnscheduled indicates a health check with neither a positive
	// interval nor an exposed status route, so nothing would ever call it.
	ErrProbeUnscheduled = errors.New("pressure: health check needs a positive interval or an exposed status route")

	// ErrInvalidThreshold indicates a threshold outside its valid range.
	ErrInvalidThreshold = errors.New("pressure: invalid threshold")

	// ErrInvalidStatusRoute indicates a status route that is not an absolute path.
	ErrInvalidStatusRoute = errors.New("pressure: status route must start with '/'")
)

// Runtime errors.
var (
	// ErrUnderPressure is the cause carried by the default pressure response.
	ErrUnderPressure = errors.New("pressure: service under pressure")

	// ErrUnhealthy is the cause carried by a failed status route probe.
	ErrUnhealthy = errors.New("pressure: external health check failed")

	// ErrClosed indicates Start was called after Close.
	ErrClosed = errors.New("pressure: closed")
)

// StatusError is a failure that carries the HTTP status and message to send.
// Pressure handlers return it through Fail to control the response.
type StatusError struct {
	// Status is the HTTP status code. Zero means the configured ErrorStatus.
	Status int

	// Message is written as the response body. Empty means the status text.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return e.Err
}
