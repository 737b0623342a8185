// Package ctxkeys defines context keys for passing per-request capture data
// through the client pipeline. All context keys are unexported to prevent
// collisions. Use the With*/From accessor pairs.
package ctxkeys

import (
	"context"

	"github.com/obswire/bodytap/internal/capture"
)

type sinkKey struct{}
type exchangeIDKey struct{}

// WithSink stores a per-request attribute sink in the context. It overrides
// the transport's default sink for that request only.
func WithSink(ctx context.Context, s capture.Sink) context.Context {
	return context.WithValue(ctx, sinkKey{}, s)
}

// SinkFrom retrieves the per-request attribute sink from the context.
func SinkFrom(ctx context.Context) (capture.Sink, bool) {
	s, ok := ctx.Value(sinkKey{}).(capture.Sink)
	return s, ok
}

// WithExchangeID stores a caller-chosen correlation id for the exchange.
func WithExchangeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, exchangeIDKey{}, id)
}

// ExchangeIDFrom retrieves the exchange correlation id from the context.
func ExchangeIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(exchangeIDKey{}).(string)
	return id, ok
}
