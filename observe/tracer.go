package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Span names and attribute keys shared by the pressure components.
const (
	SpanHealthProbe = "loadgate.health.probe"
	EventShed       = "loadgate.shed"

	AttrProbeName    = "loadgate.probe.name"
	AttrProbeHealthy = "loadgate.probe.healthy"
	AttrProbeSource  = "loadgate.probe.source"
	AttrKind         = "loadgate.pressure.kind"
	AttrValue        = "loadgate.pressure.value"
)

// Tracer wraps OpenTelemetry tracing for probe spans.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts an internal span.
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)

	// EndSpan ends the span, recording err when non-nil.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
// A nil tracer yields a no-op implementation.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddShedEvent records a shed decision on the span active in ctx, if any.
func AddShedEvent(ctx context.Context, kind string, value float64, hasValue bool) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{attribute.String(AttrKind, kind)}
	if hasValue {
		attrs = append(attrs, attribute.Float64(AttrValue, value))
	}
	span.AddEvent(EventShed, trace.WithAttributes(attrs...))
}
