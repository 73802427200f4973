package pressure

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/loadgate/health"
	"github.com/jonwraymond/loadgate/observe"
)

// Defaults applied by New.
const (
	DefaultRetryAfter  = 10 * time.Second
	DefaultStatusRoute = "/status"
	DefaultMessage     = "Service Unavailable"
)

// Config configures a Pressure gate. The zero value is a pass-through gate
// that still samples signals.
type Config struct {
	// MaxEventLoopDelay is the scheduling delay ceiling.
	// Default: 0 (disabled)
	MaxEventLoopDelay time.Duration

	// MaxEventLoopUtilization is the CPU utilization ceiling in [0, 1].
	// It is ignored when the runtime cannot measure utilization.
	// Default: 0 (disabled)
	MaxEventLoopUtilization float64

	// MaxHeapUsedBytes is the heap ceiling.
	// Default: 0 (disabled)
	MaxHeapUsedBytes uint64

	// MaxRSSBytes is the resident set ceiling.
	// Default: 0 (disabled)
	MaxRSSBytes uint64

	// HealthCheck is an optional external probe. It requires either a
	// positive HealthCheckInterval or an exposed status route.
	HealthCheck health.Checker

	// HealthCheckInterval is the spacing between periodic probes. When it is
	// not positive the probe runs once at Start and the gate keeps that
	// result.
	// Default: 0 (no periodic probe)
	HealthCheckInterval time.Duration

	// SampleInterval is the spacing between samples.
	// Default: 1s when the runtime scheduling histogram is available, else 5ms.
	SampleInterval time.Duration

	// PressureHandler answers requests while under pressure.
	// Default: fail with ErrorStatus, Retry-After and Message.
	PressureHandler Handler

	// RetryAfter is sent in the Retry-After header, rounded up to seconds.
	// Default: 10s
	RetryAfter time.Duration

	// ExposeStatusRoute serves the status route at StatusRoute.
	ExposeStatusRoute bool

	// StatusRoute is the status route path. Setting it also exposes the route.
	// Default: "/status"
	StatusRoute string

	// Message is the body of the default failure response.
	// Default: "Service Unavailable"
	Message string

	// CustomError replaces the default failure. A *StatusError controls the
	// status code.
	CustomError error

	// ErrorStatus is the status of failures that do not carry their own.
	// Default: 503
	ErrorStatus int

	// Observer provides logging, tracing and metrics.
	// Default: observe.Noop()
	Observer observe.Observer
}

// statusExposed reports whether the status route is served.
func (c *Config) statusExposed() bool {
	return c.ExposeStatusRoute || c.StatusRoute != ""
}

// Validate reports configuration errors that would make the gate unusable.
func (c *Config) Validate() error {
	if c.HealthCheck != nil {
		if err := health.Validate(c.HealthCheck); err != nil {
			return fmt.Errorf("%w: %w", ErrProbeNotCallable, err)
		}
		if c.HealthCheckInterval <= 0 && !c.statusExposed() {
			return ErrProbeUnscheduled
		}
	}

	if c.MaxEventLoopUtilization > 1 {
		return fmt.Errorf("%w: max event loop utilization %v exceeds 1", ErrInvalidThreshold, c.MaxEventLoopUtilization)
	}

	if c.StatusRoute != "" && !strings.HasPrefix(c.StatusRoute, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidStatusRoute, c.StatusRoute)
	}

	if c.ErrorStatus != 0 && (c.ErrorStatus < 400 || c.ErrorStatus > 599) {
		return fmt.Errorf("pressure: error status %d is not an HTTP error code", c.ErrorStatus)
	}

	return nil
}

func (c *Config) applyDefaults(histogram bool) {
	if c.SampleInterval <= 0 {
		if histogram {
			c.SampleInterval = DefaultSampleInterval
		} else {
			c.SampleInterval = DefaultFallbackSampleInterval
		}
	}
	if c.RetryAfter <= 0 {
		c.RetryAfter = DefaultRetryAfter
	}
	if c.ExposeStatusRoute && c.StatusRoute == "" {
		c.StatusRoute = DefaultStatusRoute
	}
	if c.Message == "" {
		c.Message = DefaultMessage
	}
	if c.ErrorStatus == 0 {
		c.ErrorStatus = http.StatusServiceUnavailable
	}
	if c.Observer == nil {
		c.Observer = observe.Noop()
	}
}
