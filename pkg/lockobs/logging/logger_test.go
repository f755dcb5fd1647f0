package logging

import (
	"context"
	"testing"
)

func TestGetReturnsUsableLogger(t *testing.T) {
	l := Get()
	l.Info().Msg("smoke test")
}

func TestContextRoundTrip(t *testing.T) {
	base := WithComponent(Get(), "manager")
	ctx := IntoContext(context.Background(), base)

	got := FromContext(ctx)
	got.Debug().Msg("should include component field")

	// FromContext on a bare context must not panic and should fall
	// back to the global logger instead.
	fallback := FromContext(context.Background())
	fallback.Debug().Msg("fallback")
}

func TestWithHelpersDoNotPanic(t *testing.T) {
	l := Get()

	withLocker := WithLocker(l, 1)
	withLocker.Info().Msg("locker")

	withResource := WithResource(l, "db.A")
	withResource.Info().Msg("resource")

	withError := WithError(l, errBoom)
	withError.Error().Msg("error")
}

var errBoom = testError("boom")

type testError string

func (e testError) Error() string { return string(e) }
