package limits

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/open_voice_gateway/internal/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRedisLimiter(t *testing.T, limit int, clock *fakeClock) *RedisLimiter {
	t.Helper()
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	limiter := NewRedisLimiter(client, limit)
	limiter.now = clock.Now
	return limiter
}

func TestMemoryLimiterDeductsAndRejects(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(5, WithClock(clock.Now))
	ctx := context.Background()

	headers, err := limiter.Check(ctx, "key-a", 3)
	require.NoError(t, err)
	require.Equal(t, Headers{Limit: 5, Remaining: 2, Reset: 36}, headers)

	headers, err = limiter.Check(ctx, "key-a", 3)
	require.ErrorIs(t, err, ErrLimitExceeded)
	require.Equal(t, 0, headers.Remaining)
	require.Equal(t, 5, headers.Limit)

	// The rejected call must not have consumed anything.
	headers, err = limiter.Check(ctx, "key-a", 2)
	require.NoError(t, err)
	require.Equal(t, 0, headers.Remaining)

	_, err = limiter.Check(ctx, "key-a", 1)
	require.ErrorIs(t, err, ErrLimitExceeded)
}

func TestMemoryLimiterRefillsAndClamps(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(60, WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		_, err := limiter.Check(ctx, "key", 1)
		require.NoError(t, err)
	}
	_, err := limiter.Check(ctx, "key", 1)
	require.ErrorIs(t, err, ErrLimitExceeded)

	// 60 rpm refills one token per second.
	clock.Advance(2 * time.Second)
	headers, err := limiter.Check(ctx, "key", 2)
	require.NoError(t, err)
	require.Equal(t, 0, headers.Remaining)

	// A long idle period never overfills the bucket.
	clock.Advance(24 * time.Hour)
	headers, err = limiter.Check(ctx, "key", 1)
	require.NoError(t, err)
	require.Equal(t, 59, headers.Remaining)

	limiter.buckets["key"].mu.Lock()
	tokens := limiter.buckets["key"].tokens
	limiter.buckets["key"].mu.Unlock()
	require.LessOrEqual(t, tokens, 60.0)
}

func TestMemoryLimiterDisabled(t *testing.T) {
	limiter := NewMemoryLimiter(0)
	for i := 0; i < 100; i++ {
		headers, err := limiter.Check(context.Background(), "key", 3)
		require.NoError(t, err)
		require.True(t, headers.Empty())
		require.Nil(t, headers.Map())
	}
	require.Equal(t, 0, limiter.Size())
}

func TestMemoryLimiterIdentitiesAreIndependent(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(1, WithClock(clock.Now))
	ctx := context.Background()

	_, err := limiter.Check(ctx, "a", 1)
	require.NoError(t, err)
	_, err = limiter.Check(ctx, "b", 1)
	require.NoError(t, err)
	_, err = limiter.Check(ctx, "", 1)
	require.NoError(t, err)
	_, err = limiter.Check(ctx, AnonymousIdentity, 1)
	require.ErrorIs(t, err, ErrLimitExceeded)
}

func TestMemoryLimiterConcurrentChecksRespectBudget(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(30, WithClock(clock.Now))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := limiter.Check(ctx, "shared", 3); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 10, granted)
}

func TestMemoryLimiterEvictsIdleBuckets(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(10, WithClock(clock.Now), WithIdleTTL(time.Minute))
	ctx := context.Background()

	_, err := limiter.Check(ctx, "old", 1)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)
	_, err = limiter.Check(ctx, "new", 1)
	require.NoError(t, err)
	require.Equal(t, 1, limiter.Size())
}

func TestHeadersMap(t *testing.T) {
	h := Headers{Limit: 60, Remaining: 57, Reset: 3}
	require.Equal(t, map[string]string{
		HeaderLimit:     "60",
		HeaderRemaining: "57",
		HeaderReset:     "3",
	}, h.Map())
}

func TestRedisLimiterMatchesBucketSemantics(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestRedisLimiter(t, 5, clock)
	ctx := context.Background()

	headers, err := limiter.Check(ctx, "key", 3)
	require.NoError(t, err)
	require.Equal(t, 2, headers.Remaining)

	headers, err = limiter.Check(ctx, "key", 3)
	require.ErrorIs(t, err, ErrLimitExceeded)
	require.Equal(t, 0, headers.Remaining)

	_, err = limiter.Check(ctx, "key", 2)
	require.NoError(t, err)

	// 5 rpm refills one token every 12 seconds.
	clock.Advance(12 * time.Second)
	_, err = limiter.Check(ctx, "key", 1)
	require.NoError(t, err)
	_, err = limiter.Check(ctx, "key", 1)
	require.ErrorIs(t, err, ErrLimitExceeded)

	clock.Advance(time.Hour)
	headers, err = limiter.Check(ctx, "key", 1)
	require.NoError(t, err)
	require.Equal(t, 4, headers.Remaining)
}

func TestRedisLimiterDisabled(t *testing.T) {
	limiter := newTestRedisLimiter(t, 0, newFakeClock())
	headers, err := limiter.Check(context.Background(), "key", 1)
	require.NoError(t, err)
	require.True(t, headers.Empty())
}

func TestNewSelectsBackend(t *testing.T) {
	limiter, err := New(config.RateLimitConfig{Backend: "memory", RequestsPerMinute: 10}, nil)
	require.NoError(t, err)
	require.IsType(t, &MemoryLimiter{}, limiter)

	_, err = New(config.RateLimitConfig{Backend: "redis", RequestsPerMinute: 10}, nil)
	require.Error(t, err)

	_, err = New(config.RateLimitConfig{Backend: "other"}, nil)
	require.Error(t, err)
}

func TestNonPositiveCostCountsAsOne(t *testing.T) {
	clock := newFakeClock()
	ctx := context.Background()
	limiters := map[string]Limiter{
		"memory": NewMemoryLimiter(2, WithClock(clock.Now)),
		"redis":  newTestRedisLimiter(t, 2, clock),
	}
	for name, limiter := range limiters {
		headers, err := limiter.Check(ctx, "key", -5)
		require.NoError(t, err, name)
		require.Equal(t, 1, headers.Remaining, name)

		headers, err = limiter.Check(ctx, "key", 0)
		require.NoError(t, err, name)
		require.Equal(t, 0, headers.Remaining, name)

		_, err = limiter.Check(ctx, "key", -100)
		require.ErrorIs(t, err, ErrLimitExceeded, name)
	}
}
