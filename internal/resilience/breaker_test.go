package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/resilience"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestBreakerTransitions(t *testing.T) {
	c := &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := resilience.NewBreaker(resilience.Config{MinRequests: 2, FailureRatio: 0.5, OpenFor: time.Minute, Now: c.now})
	ctx := context.Background()

	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.Equal(t, resilience.Open, b.State())
	require.False(t, b.Allow(ctx))

	c.t = c.t.Add(time.Minute)
	require.True(t, b.Allow(ctx))
	require.Equal(t, resilience.HalfOpen, b.State())

	b.Report(ctx, false)
	require.Equal(t, resilience.Open, b.State())

	c.t = c.t.Add(time.Minute)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, true)
	require.Equal(t, resilience.Closed, b.State())
}

func TestBreakerDo(t *testing.T) {
	c := &clock{t: time.Now()}
	b := resilience.NewBreaker(resilience.Config{MinRequests: 1, OpenFor: time.Minute, Now: c.now})
	ctx := context.Background()
	miss := errors.New("miss")

	err := b.Do(ctx, func(context.Context) error { return miss }, miss)
	require.ErrorIs(t, err, miss)
	require.Equal(t, resilience.Closed, b.State())

	boom := errors.New("boom")
	require.ErrorIs(t, b.Do(ctx, func(context.Context) error { return boom }), boom)
	require.Equal(t, resilience.Open, b.State())

	called := false
	err = b.Do(ctx, func(context.Context) error { called = true; return nil })
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.False(t, called)
}

func TestNilBreakerAllows(t *testing.T) {
	var b *resilience.Breaker
	require.True(t, b.Allow(context.Background()))
	require.NoError(t, b.Do(context.Background(), func(context.Context) error { return nil }))
	require.Equal(t, resilience.Closed, b.State())
}

func TestBreakerMetrics(t *testing.T) {
	resilience.MustRegisterMetrics("test", prometheus.NewRegistry())
	c := &clock{t: time.Now()}
	b := resilience.NewBreaker(resilience.Config{Target: "catalog_cache", MinRequests: 1, OpenFor: time.Second, Now: c.now})
	ctx := context.Background()

	b.Report(ctx, false)
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("catalog_cache")))

	c.t = c.t.Add(time.Second)
	require.True(t, b.Allow(ctx))
	require.Equal(t, 2.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("catalog_cache")))

	b.Report(ctx, true)
	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("catalog_cache")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("catalog_cache", "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("catalog_cache", "half_open", "closed")))
}
