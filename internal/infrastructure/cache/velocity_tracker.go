package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// VelocityPrefix namespaces listing-velocity keys.
const VelocityPrefix = "velocity:listing:"

// maxVelocityWindow bounds key retention; entries older than this are
// never consulted.
const maxVelocityWindow = 48 * time.Hour

// ListingVelocityTracker records listing creations per seller in a
// Redis sorted set keyed by timestamp, so the fraud aggregator can ask
// "how many in the trailing window" without hitting Postgres.
type ListingVelocityTracker struct {
	client *redis.Client
	logger *zap.Logger
}

// NewListingVelocityTracker creates a velocity tracker.
func NewListingVelocityTracker(client *redis.Client, logger *zap.Logger) *ListingVelocityTracker {
	return &ListingVelocityTracker{client: client, logger: logger}
}

// RecordListing adds one listing-creation event for the seller.
func (t *ListingVelocityTracker) RecordListing(ctx context.Context, userID uuid.UUID) error {
	now := time.Now()
	key := VelocityPrefix + userID.String()

	pipe := t.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d-%d", now.UnixNano(), now.Nanosecond()%1000),
	})
	pipe.Expire(ctx, key, maxVelocityWindow)

	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Error("velocity record failed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return fmt.Errorf("velocity record failed: %w", err)
	}
	return nil
}

// CountWithin counts the seller's listing creations inside the
// trailing window, trimming entries that have aged out.
func (t *ListingVelocityTracker) CountWithin(ctx context.Context, userID uuid.UUID, window time.Duration) (int, error) {
	key := VelocityPrefix + userID.String()
	windowStart := time.Now().Add(-window)

	pipe := t.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Error("velocity count failed",
			zap.String("user_id", userID.String()),
			zap.Duration("window", window),
			zap.Error(err))
		return 0, fmt.Errorf("velocity count failed: %w", err)
	}
	return int(countCmd.Val()), nil
}

// Reset clears a seller's velocity history.
func (t *ListingVelocityTracker) Reset(ctx context.Context, userID uuid.UUID) error {
	if err := t.client.Del(ctx, VelocityPrefix+userID.String()).Err(); err != nil {
		return fmt.Errorf("velocity reset failed: %w", err)
	}
	return nil
}
