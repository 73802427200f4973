package pressure

import (
	"context"
	"math"
	"runtime"
	"runtime/metrics"
	"time"

	"github.com/prometheus/procfs"

	"github.com/jonwraymond/loadgate/observe"
)

const (
	metricSchedLatencies = "/sched/latencies:seconds"
	metricHeapObjects    = "/memory/classes/heap/objects:bytes"
	metricMemoryTotal    = "/memory/classes/total:bytes"
)

// memoryReader returns the heap used and resident set size in bytes.
type memoryReader interface {
	ReadMemory() (heapUsed, rss uint64, err error)
}

// delayHistogram accumulates scheduling delays between resets.
type delayHistogram interface {
	// Mean returns the mean delay in nanoseconds since the last Reset.
	Mean() float64
	Reset()
}

// utilizationMeter reports the busy fraction since a fixed reference point.
type utilizationMeter interface {
	Utilization() float64
}

// sources are the measurement primitives behind the sampler.
// A nil histogram selects timer drift; a nil meter disables utilization.
type sources struct {
	memory      memoryReader
	histogram   delayHistogram
	utilization utilizationMeter
	now         func() time.Time
}

// runtimeSources probes the runtime once for the metrics it exposes.
// Utilization needs procfs and is disabled when /proc is not readable.
func runtimeSources(logger observe.Logger) sources {
	src := sources{now: time.Now}
	var proc *procfs.Proc
	if p, err := procfs.Self(); err != nil {
		logger.Warn(context.Background(), "procfs unavailable, reporting runtime mapped memory as rss",
			observe.F("error", err))
	} else {
		proc = &p
	}
	src.memory = newRuntimeMemory(logger, proc)
	if metricSupported(metricSchedLatencies, metrics.KindFloat64Histogram) {
		src.histogram = newSchedLatency()
	}
	if proc != nil {
		if u, err := newProcessCPU(logger, *proc, time.Now); err == nil {
			src.utilization = u
		} else {
			logger.Warn(context.Background(), "process cpu time unavailable, utilization check disabled",
				observe.F("error", err))
		}
	}
	return src
}

func metricSupported(name string, kind metrics.ValueKind) bool {
	for _, d := range metrics.All() {
		if d.Name == name {
			return d.Kind == kind
		}
	}
	return false
}

// runtimeMemory reads the heap from runtime/metrics and the resident set
// from procfs, falling back to the memory mapped by the Go runtime.
type runtimeMemory struct {
	logger  observe.Logger
	proc    *procfs.Proc
	samples []metrics.Sample
}

// newRuntimeMemory reports runtime mapped memory as rss when proc is nil.
func newRuntimeMemory(logger observe.Logger, proc *procfs.Proc) *runtimeMemory {
	return &runtimeMemory{
		logger:  logger,
		proc:    proc,
		samples: []metrics.Sample{{Name: metricHeapObjects}, {Name: metricMemoryTotal}},
	}
}

func (m *runtimeMemory) ReadMemory() (uint64, uint64, error) {
	metrics.Read(m.samples)
	heap := sampleUint64(m.samples[0])
	rss := sampleUint64(m.samples[1])

	if m.proc != nil {
		stat, err := m.proc.Stat()
		if err != nil {
			m.logger.Warn(context.Background(), "reading process stat failed, reporting runtime mapped memory as rss",
				observe.F("error", err))
			m.proc = nil
			return heap, rss, nil
		}
		if v := stat.ResidentMemory(); v >= 0 {
			rss = uint64(v)
		}
	}
	return heap, rss, nil
}

func sampleUint64(s metrics.Sample) uint64 {
	if s.Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return s.Value.Uint64()
}

// schedLatency is a delayHistogram over the runtime's goroutine scheduling
// latency histogram. The runtime histogram is cumulative, so a window is the
// difference between the current counts and the counts at the last Reset.
type schedLatency struct {
	sample []metrics.Sample
	base   []uint64
	cur    []uint64
}

func newSchedLatency() *schedLatency {
	h := &schedLatency{sample: []metrics.Sample{{Name: metricSchedLatencies}}}
	h.base = h.read(nil)
	return h
}

func (h *schedLatency) read(dst []uint64) []uint64 {
	metrics.Read(h.sample)
	if h.sample[0].Value.Kind() != metrics.KindFloat64Histogram {
		return dst[:0]
	}
	hist := h.sample[0].Value.Float64Histogram()
	return append(dst[:0], hist.Counts...)
}

// Mean returns the mean latency of the window in nanoseconds, using the
// midpoint of each bucket. An empty window has a mean of zero.
func (h *schedLatency) Mean() float64 {
	h.cur = h.read(h.cur)
	if h.sample[0].Value.Kind() != metrics.KindFloat64Histogram {
		return math.NaN()
	}
	buckets := h.sample[0].Value.Float64Histogram().Buckets

	var count uint64
	var sum float64
	for i, c := range h.cur {
		if i < len(h.base) {
			if h.base[i] > c {
				continue
			}
			c -= h.base[i]
		}
		if c == 0 {
			continue
		}
		count += c
		sum += float64(c) * bucketMidpoint(buckets[i], buckets[i+1])
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count) * float64(time.Second)
}

func (h *schedLatency) Reset() {
	h.base, h.cur = h.cur, h.base
}

func bucketMidpoint(lo, hi float64) float64 {
	switch {
	case math.IsInf(lo, -1):
		return hi
	case math.IsInf(hi, 1):
		return lo
	default:
		return (lo + hi) / 2
	}
}

// processCPU is a utilizationMeter over the user and system CPU time of the
// process, normalized by wall time and GOMAXPROCS. The reference is taken
// once at construction.
type processCPU struct {
	logger observe.Logger
	proc   procfs.Proc
	now    func() time.Time
	cpu0   float64
	wall0  time.Time
}

func newProcessCPU(logger observe.Logger, proc procfs.Proc, now func() time.Time) (*processCPU, error) {
	stat, err := proc.Stat()
	if err != nil {
		return nil, err
	}
	return &processCPU{
		logger: logger,
		proc:   proc,
		now:    now,
		cpu0:   stat.CPUTime(),
		wall0:  now(),
	}, nil
}

func (u *processCPU) Utilization() float64 {
	stat, err := u.proc.Stat()
	if err != nil {
		u.logger.Warn(context.Background(), "reading process cpu time failed", observe.F("error", err))
		return 0
	}
	wall := u.now().Sub(u.wall0).Seconds() * float64(runtime.GOMAXPROCS(0))
	if wall <= 0 {
		return 0
	}
	return clampUnit((stat.CPUTime() - u.cpu0) / wall)
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
