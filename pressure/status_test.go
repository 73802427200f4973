package pressure

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/loadgate/health"
)

func decodeStatus(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("status body is not JSON: %v (%q)", err, body)
	}
	return out
}

func TestStatus_NoProbe(t *testing.T) {
	p, _, _ := newTestPressure(t, Config{ExposeStatusRoute: true})

	rec := serve(p.Middleware(okHandler()), http.MethodGet, DefaultStatusRoute)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeStatus(t, rec.Body.Bytes())
	if body["status"] != "ok" || len(body) != 1 {
		t.Errorf("body = %v, want {status: ok}", body)
	}
}

func TestStatus_MergesProbeDetails(t *testing.T) {
	p, _, _ := newTestPressure(t, Config{
		StatusRoute: "/healthz",
		HealthCheck: health.DetailsChecker("db", func(context.Context) (map[string]any, error) {
			return map[string]any{"db": "up", "replicas": 3}, nil
		}),
	})

	rec := serve(p.Middleware(okHandler()), http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := decodeStatus(t, rec.Body.Bytes())
	if body["status"] != "ok" || body["db"] != "up" || body["replicas"] != float64(3) {
		t.Errorf("body = %v", body)
	}
}

func TestStatus_ProbeFieldsOverrideStatus(t *testing.T) {
	p, _, _ := newTestPressure(t, Config{
		ExposeStatusRoute: true,
		HealthCheck: health.DetailsChecker("db", func(context.Context) (map[string]any, error) {
			return map[string]any{"status": "degraded"}, nil
		}),
	})

	rec := serve(p.StatusHandler(), http.MethodGet, "/anything")
	if body := decodeStatus(t, rec.Body.Bytes()); body["status"] != "degraded" {
		t.Errorf("status field = %v, want degraded", body["status"])
	}
}

func TestStatus_UnhealthyProbe(t *testing.T) {
	tests := []struct {
		name  string
		probe health.Checker
	}{
		{name: "false", probe: falseProbe()},
		{name: "error", probe: health.BoolChecker("err", func(context.Context) (bool, error) {
			return false, errors.New("timeout")
		})},
		{name: "nil details", probe: health.DetailsChecker("nil", func(context.Context) (map[string]any, error) {
			return nil, nil
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestPressure(t, Config{ExposeStatusRoute: true, HealthCheck: tt.probe})

			rec := serve(p.Middleware(okHandler()), http.MethodGet, DefaultStatusRoute)
			if rec.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want 503", rec.Code)
			}
			if got := rec.Header().Get("Retry-After"); got != "10" {
				t.Errorf("Retry-After = %q, want 10", got)
			}
			if rec.Body.String() != DefaultMessage {
				t.Errorf("body = %q, want %q", rec.Body.String(), DefaultMessage)
			}
		})
	}
}

func TestStatus_ProbesOnDemand(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	p, _, _ := newTestPressure(t, Config{
		ExposeStatusRoute: true,
		HealthCheck: health.BoolChecker("flip", func(context.Context) (bool, error) {
			return healthy.Load(), nil
		}),
	})
	h := p.Middleware(okHandler())

	if rec := serve(h, http.MethodGet, DefaultStatusRoute); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	healthy.Store(false)
	if rec := serve(h, http.MethodGet, DefaultStatusRoute); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 after the probe flipped", rec.Code)
	}
}

func TestStatus_NotGated(t *testing.T) {
	p, mem, _ := newTestPressure(t, Config{ExposeStatusRoute: true, MaxHeapUsedBytes: 1})
	mem.set(2, 0)
	p.sampler.sample(context.Background())

	h := p.Middleware(okHandler())
	if rec := serve(h, http.MethodGet, DefaultStatusRoute); rec.Code != http.StatusOK {
		t.Errorf("status route = %d, want 200 under pressure", rec.Code)
	}
	if rec := serve(h, http.MethodGet, "/"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("other route = %d, want 503 under pressure", rec.Code)
	}
}

func TestStatus_MethodsAndHead(t *testing.T) {
	p, _, _ := newTestPressure(t, Config{ExposeStatusRoute: true})
	h := p.Middleware(okHandler())

	rec := serve(h, http.MethodHead, DefaultStatusRoute)
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("HEAD = %d with %d bytes, want 200 and empty body", rec.Code, rec.Body.Len())
	}

	rec = serve(h, http.MethodPost, DefaultStatusRoute)
	if rec.Body.String() != "ok" {
		t.Errorf("POST body = %q, want downstream response", rec.Body.String())
	}
}

func TestStatus_HeadOnFailingProbeHasNoBody(t *testing.T) {
	p, _, _ := newTestPressure(t, Config{ExposeStatusRoute: true, HealthCheck: falseProbe()})

	rec := serve(p.Middleware(okHandler()), http.MethodHead, DefaultStatusRoute)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("HEAD status = %d, want 503", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "10" {
		t.Errorf("Retry-After = %q, want 10", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body = %q, want empty", rec.Body.String())
	}
}

func TestStatus_IndependentOfMonitorGuard(t *testing.T) {
	var calls atomic.Int32
	p, _, _ := newTestPressure(t, Config{
		ExposeStatusRoute:   true,
		HealthCheckInterval: time.Hour,
		HealthCheck: health.BoolChecker("db", func(context.Context) (bool, error) {
			calls.Add(1)
			return true, nil
		}),
	})

	// Hold the monitor's guard as if a periodic probe were running.
	p.monitor.inFlight.Store(true)
	defer p.monitor.inFlight.Store(false)

	if rec := serve(p.Middleware(okHandler()), http.MethodGet, DefaultStatusRoute); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("probe calls = %d, want 1", got)
	}
}

func TestStatus_ConcurrentRequestsShareProbe(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	p, _, _ := newTestPressure(t, Config{
		ExposeStatusRoute: true,
		HealthCheck: health.BoolChecker("db", func(context.Context) (bool, error) {
			calls.Add(1)
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
			return true, nil
		}),
	})
	h := p.StatusHandler()

	first := make(chan int, 1)
	go func() { first <- serve(h, http.MethodGet, "/").Code }()
	<-started

	var wg sync.WaitGroup
	codes := make(chan int, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- serve(h, http.MethodGet, "/").Code
		}()
	}

	// Give the followers time to join the in-flight probe.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(codes)

	if code := <-first; code != http.StatusOK {
		t.Errorf("first status = %d, want 200", code)
	}
	for code := range codes {
		if code != http.StatusOK {
			t.Errorf("status = %d, want 200", code)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("probe calls = %d, want 1 shared probe", got)
	}
}

func TestStatus_AggregatedProbe(t *testing.T) {
	agg := health.NewAggregator(health.AggregatorConfig{Name: "deps"})
	agg.Register("db", health.BoolChecker("db", func(context.Context) (bool, error) {
		return true, nil
	}))
	agg.Register("cache", health.BoolChecker("cache", func(context.Context) (bool, error) {
		return true, nil
	}))
	p, _, _ := newTestPressure(t, Config{ExposeStatusRoute: true, HealthCheck: agg})

	rec := serve(p.Middleware(okHandler()), http.MethodGet, DefaultStatusRoute)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeStatus(t, rec.Body.Bytes())
	db, ok := body["db"].(map[string]any)
	if !ok || db["status"] != "healthy" {
		t.Errorf("db entry = %v, want healthy component", body["db"])
	}
	if _, ok := body["cache"]; !ok {
		t.Error("cache entry missing from status body")
	}
}
