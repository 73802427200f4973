package pressure

import (
	"github.com/jonwraymond/loadgate/health"
	"github.com/jonwraymond/loadgate/observe"
)

// MemoryUsage is the set of signals measured by the sampler.
// Every field is always present; a disabled or unsupported measurement
// reports zero.
type MemoryUsage struct {
	// EventLoopDelay is the scheduling delay in milliseconds. It is +Inf when
	// the measurement was invalid.
	EventLoopDelay float64 `json:"eventLoopDelay"`

	// EventLoopUtilization is the fraction of CPU time spent running Go code
	// since the sampler started, in [0, 1].
	EventLoopUtilization float64 `json:"eventLoopUtilized"`

	HeapUsedBytes    uint64 `json:"heapUsed"`
	ResidentSetBytes uint64 `json:"rssBytes"`
}

// Snapshot is the complete state the gate evaluates.
type Snapshot struct {
	MemoryUsage

	// Healthy is the cached external health state. It is true when no health
	// check is configured and false until the first probe completes.
	Healthy bool

	// Health is the last probe result, nil when no probe has completed.
	Health *health.Result
}

func (s Snapshot) signals() observe.Signals {
	return observe.Signals{
		EventLoopDelayMillis: s.EventLoopDelay,
		EventLoopUtilization: s.EventLoopUtilization,
		HeapUsedBytes:        s.HeapUsedBytes,
		ResidentSetBytes:     s.ResidentSetBytes,
		Healthy:              s.Healthy,
	}
}
