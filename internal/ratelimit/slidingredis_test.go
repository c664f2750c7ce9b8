package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSlidingAllowWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start
	limiter := Sliding{Client: client, Prefix: "test:", Now: func() time.Time { return now }}

	ctx := context.Background()
	window := 2 * time.Second
	max := 2

	for i := 0; i < max; i++ {
		allowed, remaining, reset, err := limiter.Allow(ctx, "key", window, max)
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i)
		require.Equal(t, max-(i+1), remaining)
		require.True(t, reset.Equal(start.Add(window)), "reset follows the oldest event")
		now = now.Add(500 * time.Millisecond)
	}

	allowed, remaining, reset, err := limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
	require.True(t, reset.Equal(start.Add(window)))

	// Rejections do not extend the window: the first event ages out on schedule.
	now = start.Add(window + 100*time.Millisecond)
	allowed, remaining, _, err = limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Zero(t, remaining)

	allowed, _, _, err = limiter.Allow(ctx, "other", window, max)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestSlidingWithoutClient(t *testing.T) {
	allowed, remaining, _, err := Sliding{}.Allow(context.Background(), "key", time.Second, 5)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 5, remaining)
}

func TestFixedMemoryAllow(t *testing.T) {
	lim := NewMemory("fixed")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, reset, err := lim.Allow(ctx, "k", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, 2-i, remaining)
		require.True(t, reset.After(time.Now()))
	}
	allowed, _, _, err := lim.Allow(ctx, "k", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, _, _, err = lim.Allow(ctx, "other", time.Minute, 3)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, remaining, _, err := Fixed{}.Allow(ctx, "k", time.Minute, 3)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 3, remaining)
}
