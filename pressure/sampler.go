package pressure

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/loadgate/observe"
)

// Default sample intervals. Coarse polling is only accurate when the runtime
// histogram records every scheduling delay in between.
const (
	DefaultSampleInterval         = time.Second
	DefaultFallbackSampleInterval = 5 * time.Millisecond
)

// sampler refreshes the published MemoryUsage on every tick.
type sampler struct {
	interval time.Duration
	src      sources
	logger   observe.Logger

	// lastCheck is only touched by the sampling goroutine.
	lastCheck time.Time

	usage atomic.Pointer[MemoryUsage]
}

func newSampler(interval time.Duration, src sources, logger observe.Logger) *sampler {
	s := &sampler{
		interval: interval,
		src:      src,
		logger:   logger,
	}
	s.usage.Store(&MemoryUsage{})
	return s
}

func (s *sampler) run(ctx context.Context) {
	s.lastCheck = s.src.now()
	every(ctx, s.interval, s.sample)
}

// sample takes one reading and publishes it as a unit.
func (s *sampler) sample(ctx context.Context) {
	heap, rss, err := s.src.memory.ReadMemory()
	if err != nil {
		// Keep the last published reading rather than reporting zero memory.
		s.logger.Error(ctx, "reading memory usage failed", observe.F("error", err))
		prev := s.load()
		heap, rss = prev.HeapUsedBytes, prev.ResidentSetBytes
	}

	usage := &MemoryUsage{
		EventLoopDelay:   s.delay(),
		HeapUsedBytes:    heap,
		ResidentSetBytes: rss,
	}
	if s.src.utilization != nil {
		usage.EventLoopUtilization = s.src.utilization.Utilization()
	}
	s.usage.Store(usage)
}

// delay returns the scheduling delay in milliseconds.
func (s *sampler) delay() float64 {
	if h := s.src.histogram; h != nil {
		d := h.Mean() / float64(time.Millisecond)
		h.Reset()
		if math.IsNaN(d) {
			return math.Inf(1)
		}
		return math.Max(0, d)
	}

	now := s.src.now()
	drift := now.Sub(s.lastCheck) - s.interval
	s.lastCheck = now
	return math.Max(0, float64(drift)/float64(time.Millisecond))
}

func (s *sampler) load() MemoryUsage {
	return *s.usage.Load()
}
