package dispatcher

import (
	"context"
	"time"
)

// Invocation summarises one completed Invoke for observers.
type Invocation struct {
	RequestID string
	Namespace string
	Operation string
	// Signature of the selected overload; empty when resolution failed.
	Signature string
	Arity     int
	Code      string
	Err       error
	Started   time.Time
	Duration  time.Duration
}

// Observer receives every completed invocation. Observe runs on the calling goroutine
// and must not block.
type Observer interface {
	Observe(ctx context.Context, inv *Invocation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, inv *Invocation)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, inv *Invocation) {
	f(ctx, inv)
}

type requestIDKey struct{}

// WithRequestID attaches the caller's request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id attached by WithRequestID.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
