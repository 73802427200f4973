// Package health defines the probe vocabulary used by the pressure monitor.
//
// A Checker answers whether a dependency of the service is usable. The
// pressure package runs one Checker on a self-rescheduling timer and caches
// its Result for request gating, and may also run it on demand for the status
// route.
//
// # Probes
//
// Most probes are simple functions:
//
//	db := health.BoolChecker("database", func(ctx context.Context) (bool, error) {
//	    return pool.Ping(ctx) == nil, nil
//	})
//
// Probes that want to surface fields on the status route return details:
//
//	queue := health.DetailsChecker("queue", func(ctx context.Context) (map[string]any, error) {
//	    depth, err := broker.Depth(ctx)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return map[string]any{"depth": depth}, nil
//	})
//
// # Aggregating Probes
//
// Aggregator combines several probes into one Checker:
//
//	agg := health.NewAggregator()
//	agg.Register("database", db)
//	agg.Register("queue", queue)
//
//	result := agg.Check(ctx) // healthy only if every component is healthy
package health
