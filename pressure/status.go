package pressure

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jonwraymond/loadgate/health"
)

// StatusHandler probes on demand, independent of the periodic monitor:
// 200 {"status":"ok", ...details} when healthy or no probe is configured,
// otherwise 503 with Retry-After. Concurrent requests share a probe that is
// already in flight, so a response may reflect a probe started before the
// request arrived.
func (p *Pressure) StatusHandler() http.Handler {
	return http.HandlerFunc(p.serveStatus)
}

func (p *Pressure) isStatusRequest(r *http.Request) bool {
	if p.cfg.StatusRoute == "" || r.URL.Path != p.cfg.StatusRoute {
		return false
	}
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

func (p *Pressure) serveStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}

	if p.statusProbe != nil {
		result := p.probeStatus(r.Context())
		if !result.IsHealthy() {
			err := result.Error
			if err == nil {
				err = ErrUnhealthy
			}
			p.writeError(w, r, &StatusError{
				Status:  http.StatusServiceUnavailable,
				Message: p.cfg.Message,
				Err:     err,
			})
			return
		}
		for k, v := range result.Details {
			body[k] = v
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// probeStatus runs the probe on demand, independent of the monitor. Status
// requests that arrive while a probe is running share its result.
func (p *Pressure) probeStatus(ctx context.Context) health.Result {
	v, _, _ := p.statusGroup.Do("status", func() (any, error) {
		return health.Run(context.WithoutCancel(ctx), p.statusProbe), nil
	})
	return v.(health.Result)
}
