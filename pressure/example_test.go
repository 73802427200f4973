package pressure_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/jonwraymond/loadgate/health"
	"github.com/jonwraymond/loadgate/pressure"
)

func ExampleEvaluate() {
	snapshot := pressure.Snapshot{
		MemoryUsage: pressure.MemoryUsage{EventLoopDelay: 250, HeapUsedBytes: 2 << 30},
		Healthy:     true,
	}
	v := pressure.Evaluate(snapshot, pressure.Thresholds{
		MaxEventLoopDelay: 100 * time.Millisecond,
		MaxHeapUsedBytes:  1 << 30,
	})
	fmt.Println(v.Kind, v.Value)
	// Output:
	// eventLoopDelay 250
}

func ExamplePressure_Middleware() {
	// The gate treats the service as unhealthy until the first probe
	// completes, so this request is shed without calling Start.
	p, err := pressure.New(pressure.Config{
		HealthCheck: health.BoolChecker("db", func(context.Context) (bool, error) {
			return false, nil
		}),
		HealthCheckInterval: time.Second,
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer p.Close(context.Background())

	app := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "hello")
	})

	rec := httptest.NewRecorder()
	p.Middleware(app).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	fmt.Println(rec.Code, rec.Header().Get("Retry-After"), rec.Body.String())
	// Output:
	// 503 10 Service Unavailable
}

func ExampleWithHandler() {
	p, err := pressure.New(pressure.Config{
		HealthCheck: health.BoolChecker("db", func(context.Context) (bool, error) {
			return false, nil
		}),
		HealthCheckInterval: time.Second,
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	// Serve a degraded answer on this route instead of failing.
	degraded := func(w http.ResponseWriter, _ *http.Request, v pressure.Verdict) pressure.Outcome {
		return pressure.Respond([]byte("degraded: " + string(v.Kind)))
	}
	withDegraded := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(pressure.WithHandler(r.Context(), degraded)))
		})
	}

	app := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	rec := httptest.NewRecorder()
	withDegraded(p.Middleware(app)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	fmt.Println(rec.Code, rec.Body.String())
	// Output:
	// 200 degraded: healthCheck
}

func ExampleNew_configError() {
	_, err := pressure.New(pressure.Config{
		HealthCheck: health.BoolChecker("db", func(context.Context) (bool, error) {
			return true, nil
		}),
	})
	fmt.Println(err)
	// Output:
	// pressure: health check needs a positive interval or an exposed status route
}
