// Package pressure sheds HTTP requests when the process is overloaded.
//
// A Pressure samples scheduling delay, CPU utilization, heap and resident
// memory on a self-rescheduling timer, optionally polls an external health
// check, and gates every request on the most recent readings. When a
// configured ceiling is exceeded the request goes to a pressure Handler
// instead of the application; the default handler answers 503 with a
// Retry-After header.
//
// # Usage
//
//	p, err := pressure.New(pressure.Config{
//	    MaxEventLoopDelay:   200 * time.Millisecond,
//	    MaxHeapUsedBytes:    512 << 20,
//	    HealthCheck:         health.BoolChecker("db", pingDB),
//	    HealthCheckInterval: 5 * time.Second,
//	    ExposeStatusRoute:   true,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	srv := &http.Server{Handler: p.Middleware(mux)}
//	p.BindServer(srv)
//
// Checks run in a fixed priority order (delay, heap, resident set, health,
// utilization) and the first violation wins. A ceiling of zero disables its
// check.
package pressure
