package health

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Name is reported by the aggregate Checker.
	// Default: "aggregate"
	Name string

	// Timeout bounds each component probe.
	// Default: 10 seconds
	Timeout time.Duration
}

// Aggregator combines several component probes into a single Checker, so a
// service that depends on a database and a cache can hand one probe to the
// pressure monitor.
type Aggregator struct {
	config   AggregatorConfig
	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// NewAggregator creates a new health aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "aggregate"
	}

	return &Aggregator{
		config:   cfg,
		checkers: make(map[string]Checker),
	}
}

// Register adds a component probe. Registering an existing name replaces it.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// Names returns the registered component names in registration order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.order))
	copy(names, a.order)
	return names
}

// Name implements Checker.
func (a *Aggregator) Name() string {
	return a.config.Name
}

// Validate implements the validation hook used by the pressure monitor.
func (a *Aggregator) Validate() error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.checkers) == 0 {
		return ErrNoCheckers
	}
	for _, name := range a.order {
		if err := Validate(a.checkers[name]); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// CheckAll runs every component probe in parallel.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	names := make([]string, len(a.order))
	copy(names, a.order)
	checkers := make([]Checker, len(names))
	for i, name := range names {
		checkers[i] = a.checkers[name]
	}
	a.mu.RUnlock()

	results := make([]Result, len(checkers))

	// Probe failures are carried in Result, never as group errors, so one
	// failing component does not cancel its siblings.
	g, gctx := errgroup.WithContext(ctx)
	for i, checker := range checkers {
		g.Go(func() error {
			results[i] = a.runCheck(gctx, checker)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]Result, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

// Check implements Checker. The aggregate is healthy only when every
// component is healthy; component outcomes are reported in Details.
func (a *Aggregator) Check(ctx context.Context) Result {
	results := a.CheckAll(ctx)
	if len(results) == 0 {
		return Unhealthy("no components registered", ErrNoCheckers)
	}

	details := make(map[string]any, len(results))
	var failed []string
	for _, name := range a.Names() {
		result, ok := results[name]
		if !ok {
			continue
		}
		entry := map[string]any{
			"status":   result.Status.String(),
			"duration": result.Duration.String(),
		}
		if result.Message != "" {
			entry["message"] = result.Message
		}
		if result.Error != nil {
			entry["error"] = result.Error.Error()
		}
		details[name] = entry
		if !result.IsHealthy() {
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		return Unhealthy(
			"unhealthy components: "+strings.Join(failed, ", "),
			ErrCheckFailed,
		).WithDetails(details)
	}
	return Healthy("all components healthy").WithDetails(details)
}

func (a *Aggregator) runCheck(ctx context.Context, checker Checker) Result {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan Result, 1)

	go func() {
		resultCh <- Run(ctx, checker)
	}()

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		}
	}
}
