package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestListingVelocityTracker(t *testing.T) {
	client := setupRedis(t)
	tracker := NewListingVelocityTracker(client, zaptest.NewLogger(t))
	ctx := context.Background()
	userID := uuid.New()

	count, err := tracker.CountWithin(ctx, userID, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for i := 0; i < 3; i++ {
		require.NoError(t, tracker.RecordListing(ctx, userID))
	}

	count, err = tracker.CountWithin(ctx, userID, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Another seller's listings are tracked separately.
	count, err = tracker.CountWithin(ctx, uuid.New(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestListingVelocityTrackerWindowTrimming(t *testing.T) {
	client := setupRedis(t)
	tracker := NewListingVelocityTracker(client, zaptest.NewLogger(t))
	ctx := context.Background()
	userID := uuid.New()

	// Seed an event two days old, outside any reasonable window.
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, client.ZAdd(ctx, VelocityPrefix+userID.String(), redis.Z{
		Score:  float64(stale.UnixNano()),
		Member: "stale",
	}).Err())
	require.NoError(t, tracker.RecordListing(ctx, userID))

	count, err := tracker.CountWithin(ctx, userID, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "stale events fall out of the window")
}

func TestListingVelocityTrackerReset(t *testing.T) {
	client := setupRedis(t)
	tracker := NewListingVelocityTracker(client, zaptest.NewLogger(t))
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, tracker.RecordListing(ctx, userID))
	require.NoError(t, tracker.Reset(ctx, userID))

	count, err := tracker.CountWithin(ctx, userID, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	client := setupRedis(t)
	limiter := NewRateLimiter(client, zaptest.NewLogger(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "client-1", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "client-1", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed, "sixth request exceeds the limit")

	// Other clients are unaffected.
	allowed, err = limiter.Allow(ctx, "client-2", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestPolicyLimiterBindsLimitAndWindow(t *testing.T) {
	client := setupRedis(t)
	limiter := NewPolicyLimiter(NewRateLimiter(client, zaptest.NewLogger(t)), 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "10.0.0.9")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "10.0.0.9")
	require.NoError(t, err)
	assert.False(t, allowed, "fourth request exceeds the bound limit")

	allowed, err = limiter.Allow(ctx, "10.0.0.10")
	require.NoError(t, err)
	assert.True(t, allowed, "clients are limited independently")
}

func TestRateLimiterCountAndReset(t *testing.T) {
	client := setupRedis(t)
	limiter := NewRateLimiter(client, zaptest.NewLogger(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := limiter.Allow(ctx, "client-3", 10, time.Minute)
		require.NoError(t, err)
	}

	count, err := limiter.Count(ctx, "client-3", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, limiter.Reset(ctx, "client-3"))

	count, err = limiter.Count(ctx, "client-3", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
