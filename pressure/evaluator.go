package pressure

import (
	"math"
	"time"
)

// Kind names the signal that put the service under pressure.
// The string values are stable and appear in logs, metrics and traces.
type Kind string

const (
	KindNone                 Kind = ""
	KindEventLoopDelay       Kind = "eventLoopDelay"
	KindHeapUsedBytes        Kind = "heapUsedBytes"
	KindRSSBytes             Kind = "rssBytes"
	KindHealthCheck          Kind = "healthCheck"
	KindEventLoopUtilization Kind = "eventLoopUtilization"
)

// Verdict is the result of evaluating a Snapshot against Thresholds.
type Verdict struct {
	// Kind is the first signal found over budget, or KindNone.
	Kind Kind

	// Value is the observed value of that signal. It is meaningful only when
	// HasValue is set; health check verdicts carry no value.
	Value    float64
	HasValue bool
}

// UnderPressure reports whether any signal is over budget.
func (v Verdict) UnderPressure() bool {
	return v.Kind != KindNone
}

// Thresholds are the ceilings a Snapshot is checked against.
// A zero or negative ceiling disables its check.
type Thresholds struct {
	MaxEventLoopDelay       time.Duration
	MaxEventLoopUtilization float64
	MaxHeapUsedBytes        uint64
	MaxRSSBytes             uint64

	// CheckHealth enables the external health check.
	CheckHealth bool
}

// Evaluate returns the first violated check in priority order: event loop
// delay, heap used, resident set, external health, event loop utilization.
// Comparisons are strict, so a value equal to its ceiling is not a violation.
func Evaluate(s Snapshot, t Thresholds) Verdict {
	if t.MaxEventLoopDelay > 0 {
		limit := float64(t.MaxEventLoopDelay) / float64(time.Millisecond)
		delay := s.EventLoopDelay
		// NaN compares false against everything and would disable the check.
		if math.IsNaN(delay) {
			delay = math.Inf(1)
		}
		if delay > limit {
			return Verdict{Kind: KindEventLoopDelay, Value: delay, HasValue: true}
		}
	}

	if t.MaxHeapUsedBytes > 0 && s.HeapUsedBytes > t.MaxHeapUsedBytes {
		return Verdict{Kind: KindHeapUsedBytes, Value: float64(s.HeapUsedBytes), HasValue: true}
	}

	if t.MaxRSSBytes > 0 && s.ResidentSetBytes > t.MaxRSSBytes {
		return Verdict{Kind: KindRSSBytes, Value: float64(s.ResidentSetBytes), HasValue: true}
	}

	if t.CheckHealth && !s.Healthy {
		return Verdict{Kind: KindHealthCheck}
	}

	if t.MaxEventLoopUtilization > 0 && s.EventLoopUtilization > t.MaxEventLoopUtilization {
		return Verdict{Kind: KindEventLoopUtilization, Value: s.EventLoopUtilization, HasValue: true}
	}

	return Verdict{}
}
