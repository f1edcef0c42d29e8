package cache

import (
	"context"
	"courier-route-service/internal/domain"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const distanceKeyPrefix = "route:dist:"

// RedisDistanceCache keeps pair distances in Redis with a per-key TTL.
type RedisDistanceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDistanceCache(rdb *redis.Client, ttl time.Duration) *RedisDistanceCache {
	return &RedisDistanceCache{rdb: rdb, ttl: ttl}
}

func (c *RedisDistanceCache) Get(ctx context.Context, origin, destination domain.Coordinates) (int, bool, error) {
	val, err := c.rdb.Get(ctx, distanceKey(origin, destination)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis distance cache get: %w", err)
	}

	meters, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("redis distance cache: corrupt value %q: %w", val, err)
	}
	return meters, true, nil
}

func (c *RedisDistanceCache) Put(ctx context.Context, origin, destination domain.Coordinates, meters int) error {
	if err := c.rdb.Set(ctx, distanceKey(origin, destination), meters, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis distance cache set: %w", err)
	}
	return nil
}

func distanceKey(origin, destination domain.Coordinates) string {
	return distanceKeyPrefix + origin.Key() + "|" + destination.Key()
}
