package pressure

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/loadgate/health"
	"github.com/jonwraymond/loadgate/observe"
)

// Pressure samples process signals in the background and gates requests on
// them. Create one per server with New, then Start it.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use. Requests only
//     read the latest published snapshot and never trigger a measurement.
//   - Lifecycle: Close is idempotent and may be called without Start.
type Pressure struct {
	cfg        Config
	thresholds Thresholds

	sampler *sampler
	monitor *monitor

	statusProbe health.Checker
	statusGroup singleflight.Group

	logger  observe.Logger
	metrics observe.Metrics

	mu         sync.Mutex
	started    bool
	closed     bool
	cancel     context.CancelFunc
	done       chan struct{}
	unregister func() error
}

// New validates cfg and builds a gate. Configuration errors are returned
// here rather than at the first request.
func New(cfg Config) (*Pressure, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	obs := cfg.Observer
	if obs == nil {
		obs = observe.Noop()
	}
	return newWithSources(cfg, runtimeSources(obs.Logger()))
}

func newWithSources(cfg Config, src sources) (*Pressure, error) {
	cfg.applyDefaults(src.histogram != nil)

	mw, err := observe.MiddlewareFromObserver(cfg.Observer)
	if err != nil {
		return nil, err
	}
	logger := mw.Logger().With(observe.F("component", "pressure"))

	p := &Pressure{
		cfg:     cfg,
		sampler: newSampler(cfg.SampleInterval, src, logger),
		logger:  logger,
		metrics: mw.Metrics(),
		thresholds: Thresholds{
			MaxEventLoopDelay:       cfg.MaxEventLoopDelay,
			MaxEventLoopUtilization: cfg.MaxEventLoopUtilization,
			MaxHeapUsedBytes:        cfg.MaxHeapUsedBytes,
			MaxRSSBytes:             cfg.MaxRSSBytes,
			CheckHealth:             cfg.HealthCheck != nil,
		},
	}
	if src.utilization == nil {
		p.thresholds.MaxEventLoopUtilization = 0
	}

	if cfg.HealthCheck != nil {
		p.monitor = newMonitor(mw.Wrap(cfg.HealthCheck, "monitor"), cfg.HealthCheckInterval)
		p.statusProbe = mw.Wrap(cfg.HealthCheck, "status")
	}

	return p, nil
}

// Start launches the sampler and, when a health check is configured, the
// health monitor. Cancelling ctx stops them as Close does, without waiting.
// Calling Start more than once has no effect.
func (p *Pressure) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.started {
		return nil
	}

	unregister, err := p.metrics.ObserveSignals(func() observe.Signals {
		return p.Snapshot().signals()
	})
	if err != nil {
		return err
	}
	p.unregister = unregister
	p.started = true

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.sampler.run(runCtx)
	}()
	if p.monitor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.monitor.run(runCtx)
		}()
	}
	go func() {
		wg.Wait()
		close(p.done)
	}()

	p.logger.Info(ctx, "pressure gate started",
		observe.F("sample_interval_ms", p.cfg.SampleInterval.Milliseconds()),
		observe.F("health_check_interval_ms", p.cfg.HealthCheckInterval.Milliseconds()),
		observe.F("status_route", p.cfg.StatusRoute),
	)
	return nil
}

// Close stops the background timers and waits for a probe that is still
// running, bounded by ctx. Further calls return nil.
func (p *Pressure) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	cancel, done, unregister := p.cancel, p.done, p.unregister
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if unregister != nil {
		if uerr := unregister(); uerr != nil && err == nil {
			err = uerr
		}
	}

	p.logger.Info(ctx, "pressure gate stopped")
	return err
}

// BindServer closes p when srv shuts down.
func (p *Pressure) BindServer(srv *http.Server) {
	srv.RegisterOnShutdown(func() {
		if err := p.Close(context.Background()); err != nil {
			p.logger.Warn(context.Background(), "closing pressure gate failed", observe.F("error", err))
		}
	})
}

// MemoryUsage returns the latest sampled signals.
func (p *Pressure) MemoryUsage() MemoryUsage {
	return p.sampler.load()
}

// Snapshot returns the latest signals together with the cached health state.
func (p *Pressure) Snapshot() Snapshot {
	s := Snapshot{MemoryUsage: p.sampler.load(), Healthy: true}
	if p.monitor != nil {
		state := p.monitor.load()
		s.Healthy = state.healthy
		s.Health = state.result
	}
	return s
}

// Verdict evaluates the latest snapshot.
func (p *Pressure) Verdict() Verdict {
	return Evaluate(p.Snapshot(), p.thresholds)
}

// IsUnderPressure reports whether any configured check is currently violated.
func (p *Pressure) IsUnderPressure() bool {
	return p.Verdict().UnderPressure()
}
