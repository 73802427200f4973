package pressure

import "context"

// Accessor reads the pressure state from inside a request handler.
type Accessor interface {
	// MemoryUsage returns the latest sampled signals.
	MemoryUsage() MemoryUsage

	// IsUnderPressure re-evaluates the latest snapshot.
	IsUnderPressure() bool
}

type accessorKey struct{}

type handlerKey struct{}

// FromContext returns the Accessor published by the gate for this request.
func FromContext(ctx context.Context) (Accessor, bool) {
	a, ok := ctx.Value(accessorKey{}).(Accessor)
	return a, ok
}

// MemoryUsageFromContext returns the latest signals, or the zero value when
// the request did not pass through a gate.
func MemoryUsageFromContext(ctx context.Context) MemoryUsage {
	if a, ok := FromContext(ctx); ok {
		return a.MemoryUsage()
	}
	return MemoryUsage{}
}

// IsUnderPressure reports whether the gate that admitted this request
// currently sees pressure.
func IsUnderPressure(ctx context.Context) bool {
	if a, ok := FromContext(ctx); ok {
		return a.IsUnderPressure()
	}
	return false
}

// WithHandler overrides the pressure handler for requests carrying ctx.
// It must be applied before the gate runs.
func WithHandler(ctx context.Context, h Handler) context.Context {
	return context.WithValue(ctx, handlerKey{}, h)
}

func handlerFromContext(ctx context.Context) Handler {
	h, _ := ctx.Value(handlerKey{}).(Handler)
	return h
}
