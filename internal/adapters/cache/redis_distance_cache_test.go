package cache

import (
	"context"
	"courier-route-service/internal/domain"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisDistanceCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewRedisDistanceCache(rdb, time.Hour)
	ctx := context.Background()
	a := domain.Coordinates{Lon: 30.31581, Lat: 59.93912}
	b := domain.Coordinates{Lon: 30.36091, Lat: 59.93113}

	_, ok, err := c.Get(ctx, a, b)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Put(ctx, a, b, 3121))

	meters, ok, err := c.Get(ctx, a, b)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3121, meters)

	_, ok, err = c.Get(ctx, b, a)
	require.NoError(t, err)
	require.False(t, ok, "cache is directional")

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, a, b)
	require.NoError(t, err)
	require.False(t, ok, "entry should expire")
}

func TestRedisDistanceCacheCorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	a := domain.Coordinates{Lon: 1, Lat: 2}
	b := domain.Coordinates{Lon: 3, Lat: 4}
	require.NoError(t, mr.Set(distanceKey(a, b), "far"))

	_, _, err := NewRedisDistanceCache(rdb, 0).Get(context.Background(), a, b)
	require.Error(t, err)
}
