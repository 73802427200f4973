package observe

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	MetricEventLoopDelay       = "loadgate.event_loop.delay"
	MetricEventLoopUtilization = "loadgate.event_loop.utilization"
	MetricHeapUsed             = "loadgate.memory.heap_used"
	MetricResidentSet          = "loadgate.memory.rss"
	MetricHealthy              = "loadgate.health.healthy"
	MetricShed                 = "loadgate.requests.shed"
	MetricProbeDuration        = "loadgate.health.probe.duration"
	MetricProbeFailures        = "loadgate.health.probe.failures"
)

// Signals is one reading of the values the gauges report.
type Signals struct {
	EventLoopDelayMillis float64
	EventLoopUtilization float64
	HeapUsedBytes        uint64
	ResidentSetBytes     uint64
	Healthy              bool
}

// Metrics records pressure telemetry.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: recording must not panic.
type Metrics interface {
	// RecordShed counts a request diverted to the pressure handler.
	RecordShed(ctx context.Context, kind string)

	// RecordProbe records one health probe invocation.
	RecordProbe(ctx context.Context, name, source string, duration time.Duration, healthy bool)

	// ObserveSignals registers gauges that call read at collection time.
	// The returned function unregisters them.
	ObserveSignals(read func() Signals) (unregister func() error, err error)
}

type metricsImpl struct {
	meter         metric.Meter
	shedCount     metric.Int64Counter
	probeDuration metric.Float64Histogram
	probeFailures metric.Int64Counter
}

// NewMetrics creates the pressure instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	if meter == nil {
		return NoopMetrics(), nil
	}

	shedCount, err := meter.Int64Counter(
		MetricShed,
		metric.WithDescription("Requests diverted to the pressure handler"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	probeDuration, err := meter.Float64Histogram(
		MetricProbeDuration,
		metric.WithDescription("External health probe duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	probeFailures, err := meter.Int64Counter(
		MetricProbeFailures,
		metric.WithDescription("External health probes that reported unhealthy"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:         meter,
		shedCount:     shedCount,
		probeDuration: probeDuration,
		probeFailures: probeFailures,
	}, nil
}

func (m *metricsImpl) RecordShed(ctx context.Context, kind string) {
	m.shedCount.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrKind, kind)))
}

func (m *metricsImpl) RecordProbe(ctx context.Context, name, source string, duration time.Duration, healthy bool) {
	opt := metric.WithAttributes(
		attribute.String(AttrProbeName, name),
		attribute.String(AttrProbeSource, source),
	)

	m.probeDuration.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
	if !healthy {
		m.probeFailures.Add(ctx, 1, opt)
	}
}

func (m *metricsImpl) ObserveSignals(read func() Signals) (func() error, error) {
	delay, err := m.meter.Float64ObservableGauge(
		MetricEventLoopDelay,
		metric.WithDescription("Mean scheduling delay over the last sampling window"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	utilization, err := m.meter.Float64ObservableGauge(
		MetricEventLoopUtilization,
		metric.WithDescription("Fraction of available CPU time spent running Go code"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	heap, err := m.meter.Int64ObservableGauge(
		MetricHeapUsed,
		metric.WithDescription("Bytes occupied by live and unswept heap objects"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}
	rss, err := m.meter.Int64ObservableGauge(
		MetricResidentSet,
		metric.WithDescription("Resident set size of the process"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}
	healthy, err := m.meter.Int64ObservableGauge(
		MetricHealthy,
		metric.WithDescription("1 when the cached external health probe is healthy"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	reg, err := m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := read()
		// Exporters reject non-finite values; an invalid delay reads as the
		// largest representable one.
		d := s.EventLoopDelayMillis
		if math.IsInf(d, 0) || math.IsNaN(d) {
			d = math.MaxFloat64
		}
		o.ObserveFloat64(delay, d)
		o.ObserveFloat64(utilization, s.EventLoopUtilization)
		o.ObserveInt64(heap, clampInt64(s.HeapUsedBytes))
		o.ObserveInt64(rss, clampInt64(s.ResidentSetBytes))
		var h int64
		if s.Healthy {
			h = 1
		}
		o.ObserveInt64(healthy, h)
		return nil
	}, delay, utilization, heap, rss, healthy)
	if err != nil {
		return nil, err
	}

	return reg.Unregister, nil
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

type noopMetrics struct{}

// NoopMetrics returns a Metrics implementation that records nothing.
func NoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordShed(ctx context.Context, kind string) {}

func (noopMetrics) RecordProbe(ctx context.Context, name, source string, duration time.Duration, healthy bool) {
}

func (noopMetrics) ObserveSignals(read func() Signals) (func() error, error) {
	return func() error { return nil }, nil
}
