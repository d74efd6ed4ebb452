package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitPrefix namespaces rate-limit keys.
const RateLimitPrefix = "ratelimit:"

// RateLimiter is a sliding-window rate limiter backed by Redis sorted
// sets. Used to throttle boundary validation and fraud-detection
// endpoints per client.
type RateLimiter struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRateLimiter creates a Redis-based rate limiter.
func NewRateLimiter(client *redis.Client, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{client: client, logger: logger}
}

// Allow reports whether a request under key is allowed given the limit
// per sliding window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window)
	rateLimitKey := RateLimitPrefix + key

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, rateLimitKey, "-inf", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, rateLimitKey)

	requestID := fmt.Sprintf("%d-%d", now.UnixNano(), now.Nanosecond()%1000)
	pipe.ZAdd(ctx, rateLimitKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: requestID,
	})
	pipe.Expire(ctx, rateLimitKey, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("rate limiter pipeline failed",
			zap.String("key", key),
			zap.Int("limit", limit),
			zap.Duration("window", window),
			zap.Error(err))
		return false, fmt.Errorf("rate limiter pipeline failed: %w", err)
	}

	// Count before the current request was added.
	if countCmd.Val() >= int64(limit) {
		r.client.ZRem(ctx, rateLimitKey, requestID)
		return false, nil
	}
	return true, nil
}

// Count returns the number of requests in the current window.
func (r *RateLimiter) Count(ctx context.Context, key string, window time.Duration) (int, error) {
	windowStart := time.Now().Add(-window)
	rateLimitKey := RateLimitPrefix + key

	if err := r.client.ZRemRangeByScore(ctx, rateLimitKey, "-inf",
		strconv.FormatInt(windowStart.UnixNano(), 10)).Err(); err != nil {
		return 0, fmt.Errorf("rate limiter cleanup failed: %w", err)
	}

	count, err := r.client.ZCard(ctx, rateLimitKey).Result()
	if err != nil {
		return 0, fmt.Errorf("rate limiter count failed: %w", err)
	}
	return int(count), nil
}

// Reset clears the rate limit counter for a key.
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, RateLimitPrefix+key).Err(); err != nil {
		return fmt.Errorf("rate limiter reset failed: %w", err)
	}
	return nil
}

// PolicyLimiter binds a RateLimiter to one limit and window so the API
// middleware can gate per client without carrying the tuning around.
type PolicyLimiter struct {
	limiter *RateLimiter
	limit   int
	window  time.Duration
}

// NewPolicyLimiter fixes a limit/window policy over a RateLimiter.
func NewPolicyLimiter(limiter *RateLimiter, limit int, window time.Duration) *PolicyLimiter {
	return &PolicyLimiter{limiter: limiter, limit: limit, window: window}
}

// Allow reports whether the client may proceed under the bound policy.
func (p *PolicyLimiter) Allow(ctx context.Context, clientID string) (bool, error) {
	return p.limiter.Allow(ctx, clientID, p.limit, p.window)
}
