package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// IntoContext returns a copy of ctx carrying l, retrievable with
// FromContext.
func IntoContext(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger carried by ctx, or the global default
// logger if ctx carries none.
func FromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return Get()
}
