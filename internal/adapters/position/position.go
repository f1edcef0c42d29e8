package position

import (
	"context"
	"courier-route-service/internal/domain"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Static always reports the same coordinate.
type Static struct {
	c domain.Coordinates
}

func NewStatic(c domain.Coordinates) *Static { return &Static{c: c} }

func (s *Static) CurrentCoordinate(context.Context) (domain.Coordinates, error) {
	return s.c, nil
}

// Unavailable is used when no position source is configured.
type Unavailable struct{}

func (Unavailable) CurrentCoordinate(context.Context) (domain.Coordinates, error) {
	return domain.Coordinates{}, domain.ErrPermissionDenied
}

// RedisGeo reads the courier position from a Redis GEO set that a tracking
// service keeps up to date (GEOADD key lon lat member).
type RedisGeo struct {
	rdb    *redis.Client
	key    string
	member string
}

func NewRedisGeo(rdb *redis.Client, key, member string) *RedisGeo {
	return &RedisGeo{rdb: rdb, key: key, member: member}
}

func (r *RedisGeo) CurrentCoordinate(ctx context.Context) (domain.Coordinates, error) {
	pos, err := r.rdb.GeoPos(ctx, r.key, r.member).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Coordinates{}, domain.ErrLocationUnavailable
	}
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("read position %s/%s: %w: %v", r.key, r.member, domain.ErrLocationUnavailable, err)
	}

	if len(pos) == 0 || pos[0] == nil {
		return domain.Coordinates{}, domain.ErrLocationUnavailable
	}

	return domain.Coordinates{Lon: pos[0].Longitude, Lat: pos[0].Latitude}, nil
}
