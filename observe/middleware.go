package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/loadgate/health"
)

// Middleware wraps health probes with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap returns a Checker that is safe for concurrent use if
//     the wrapped Checker is.
//   - Errors: probe results are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
// Nil components are replaced with no-op implementations.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewTracer(nil)
	}
	if metrics == nil {
		metrics = NoopMetrics()
	}
	if logger == nil {
		logger = NoopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Metrics returns the metrics recorder used by the middleware.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Logger returns the logger used by the middleware.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Wrap returns a Checker that runs c through health.Run inside a span.
// source distinguishes the periodic monitor from on-demand status checks.
func (m *Middleware) Wrap(c health.Checker, source string) health.Checker {
	return &instrumentedChecker{mw: m, inner: c, source: source}
}

type instrumentedChecker struct {
	mw     *Middleware
	inner  health.Checker
	source string
}

func (c *instrumentedChecker) Name() string {
	return c.inner.Name()
}

func (c *instrumentedChecker) Check(ctx context.Context) health.Result {
	name := c.inner.Name()
	ctx, span := c.mw.tracer.StartSpan(ctx, SpanHealthProbe,
		attribute.String(AttrProbeName, name),
		attribute.String(AttrProbeSource, c.source),
	)

	result := health.Run(ctx, c.inner)

	span.SetAttributes(attribute.Bool(AttrProbeHealthy, result.IsHealthy()))
	c.mw.tracer.EndSpan(span, result.Error)
	c.mw.metrics.RecordProbe(ctx, name, c.source, result.Duration, result.IsHealthy())

	fields := []Field{
		F("probe", name),
		F("source", c.source),
		F("duration_ms", float64(result.Duration.Microseconds())/1000),
	}
	if result.IsHealthy() {
		c.mw.logger.Debug(ctx, "health check passed", fields...)
		return result
	}

	if result.Error != nil {
		fields = append(fields, F("error", result.Error))
	}
	if result.Message != "" {
		fields = append(fields, F("reason", result.Message))
	}
	c.mw.logger.Error(ctx, "health check failed, marking service unhealthy", fields...)
	return result
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
