package pressure

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/jonwraymond/loadgate/observe"
)

// Middleware returns an http.Handler that gates next on the latest snapshot.
//
// The middleware:
//  1. Answers the status route, when exposed, without gating it
//  2. Publishes an Accessor into the request context
//  3. Evaluates the snapshot; with no violation, calls next
//  4. Otherwise calls the pressure handler and applies its Outcome
func (p *Pressure) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.isStatusRequest(r) {
			p.serveStatus(w, r)
			return
		}
		p.gate(w, r, next, nil)
	})
}

// MiddlewareFunc returns Middleware in the shape most routers expect.
func (p *Pressure) MiddlewareFunc() func(http.Handler) http.Handler {
	return p.Middleware
}

// Route gates a single route with h as its pressure handler. Use it for
// routes that are not already behind Middleware.
func (p *Pressure) Route(h Handler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.gate(w, r, next, h)
	})
}

func (p *Pressure) gate(w http.ResponseWriter, r *http.Request, next http.Handler, override Handler) {
	ctx := context.WithValue(r.Context(), accessorKey{}, Accessor(p))
	r = r.WithContext(ctx)

	v := p.Verdict()
	if !v.UnderPressure() {
		next.ServeHTTP(w, r)
		return
	}

	h := override
	if h == nil {
		h = handlerFromContext(ctx)
	}
	if h == nil {
		h = p.cfg.PressureHandler
	}
	if h == nil {
		h = p.defaultHandler
	}

	p.recordShed(ctx, r, v)

	out := h(w, r, v)
	switch out.kind {
	case outcomeRespond:
		_, _ = w.Write(out.body)
	case outcomeFail:
		p.writeError(w, r, out.err)
	default:
		next.ServeHTTP(w, r)
	}
}

// defaultHandler fails with CustomError, or with ErrorStatus and Message.
func (p *Pressure) defaultHandler(http.ResponseWriter, *http.Request, Verdict) Outcome {
	if p.cfg.CustomError != nil {
		return Fail(p.cfg.CustomError)
	}
	return Fail(&StatusError{
		Status:  p.cfg.ErrorStatus,
		Message: p.cfg.Message,
		Err:     ErrUnderPressure,
	})
}

func (p *Pressure) recordShed(ctx context.Context, r *http.Request, v Verdict) {
	p.metrics.RecordShed(ctx, string(v.Kind))
	observe.AddShedEvent(ctx, string(v.Kind), v.Value, v.HasValue)

	fields := []observe.Field{
		observe.F("kind", string(v.Kind)),
		observe.F("method", r.Method),
		observe.F("path", r.URL.Path),
	}
	if v.HasValue {
		fields = append(fields, observe.F("value", v.Value))
	}
	p.logger.Debug(ctx, "request under pressure", fields...)
}

// writeError sends err as a plain text response with Retry-After. HEAD
// requests get the headers only.
func (p *Pressure) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := p.cfg.ErrorStatus
	msg := ""
	var se *StatusError
	if errors.As(err, &se) {
		if se.Status != 0 {
			status = se.Status
		}
		msg = se.Message
	} else if err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	h := w.Header()
	h.Set("Retry-After", p.retryAfter())
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.WriteString(w, msg)
}

// retryAfter formats RetryAfter in whole seconds, rounding up.
func (p *Pressure) retryAfter() string {
	return strconv.FormatInt(int64(math.Ceil(p.cfg.RetryAfter.Seconds())), 10)
}
