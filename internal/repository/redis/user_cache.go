package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fitgrid/auth-service/internal/domain"
)

const userKeyPrefix = "user:"

// UserCache is a read-through cache of denormalized user projections.
// Best-effort: absence never means the user does not exist, and every
// accepted write to a user must invalidate its entry before the write
// reports success.
type UserCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewUserCache(client *redis.Client, ttl time.Duration) *UserCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &UserCache{client: client, ttl: ttl}
}

func userKey(userID string) string {
	return userKeyPrefix + userID
}

// Get returns the cached projection, or (nil, nil) on a miss.
func (c *UserCache) Get(ctx context.Context, userID string) (*domain.Projection, error) {
	data, err := c.client.Get(ctx, userKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read user cache: %v", domain.ErrStoreUnavailable, err)
	}

	var p domain.Projection
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		// A corrupt entry is a miss, not an error; the durable store wins.
		return nil, nil
	}
	return &p, nil
}

// Put stores the projection under the cache TTL.
func (c *UserCache) Put(ctx context.Context, projection *domain.Projection) error {
	data, err := json.Marshal(projection)
	if err != nil {
		return fmt.Errorf("failed to marshal user projection: %v", err)
	}
	if err := c.client.Set(ctx, userKey(projection.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%w: failed to write user cache: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Invalidate deletes the entry. Idempotent.
func (c *UserCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, userKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: failed to invalidate user cache: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
