// Package observe provides the logging, tracing and metrics used by the
// pressure gate.
//
// It is a pure instrumentation library. NewObserver builds OpenTelemetry
// providers from a Config; the pressure package consumes the resulting
// Observer to log probe failures, trace probe calls, count shed requests and
// publish the sampled signals as gauges.
//
// # Usage
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "checkout",
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer obs.Shutdown(ctx)
//
//	p, err := pressure.New(pressure.Config{
//	    MaxHeapUsedBytes: 512 << 20,
//	    Observer:         obs,
//	})
package observe
