package pressure

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/loadgate/health"
)

// healthState is the cached outcome of the periodic probe.
type healthState struct {
	healthy bool
	result  *health.Result
}

// monitor runs the external health probe on a self-rescheduling timer and
// caches its outcome for the gate.
//
// Contract:
//   - Concurrency: at most one probe started by the monitor is in flight.
//   - Context: probes never observe cancellation; a slow probe only delays
//     the next one.
type monitor struct {
	checker  health.Checker
	interval time.Duration

	inFlight atomic.Bool
	state    atomic.Pointer[healthState]
}

func newMonitor(checker health.Checker, interval time.Duration) *monitor {
	m := &monitor{checker: checker, interval: interval}
	m.state.Store(&healthState{})
	return m
}

// run probes once immediately, then every interval after the previous probe
// settled. A non-positive interval probes only once.
func (m *monitor) run(ctx context.Context) {
	m.probe(ctx)
	if m.interval <= 0 {
		return
	}
	every(ctx, m.interval, m.probe)
}

// probe invokes the checker unless a previous invocation is still running.
func (m *monitor) probe(ctx context.Context) {
	if !m.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer m.inFlight.Store(false)

	result := health.Run(context.WithoutCancel(ctx), m.checker)
	m.state.Store(&healthState{healthy: result.IsHealthy(), result: &result})
}

func (m *monitor) load() healthState {
	return *m.state.Load()
}
