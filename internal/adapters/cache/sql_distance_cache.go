package cache

import (
	"context"
	"courier-route-service/internal/domain"
	"courier-route-service/internal/platform/obs"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLDistanceCache is a Postgres-backed cache of pair distances keyed by rounded coordinates.
type SQLDistanceCache struct {
	DB  *sql.DB
	TTL time.Duration
}

func NewSQLDistanceCache(db *sql.DB, ttl time.Duration) *SQLDistanceCache {
	return &SQLDistanceCache{DB: db, TTL: ttl}
}

// Get returns the cached distance if present and younger than TTL.
func (s *SQLDistanceCache) Get(
	ctx context.Context,
	origin domain.Coordinates,
	destination domain.Coordinates,
) (_ int, _ bool, err error) {
	defer obs.Time(ctx, "distance.cache.Get")(&err)

	if s.DB == nil {
		return 0, false, errors.New("distance cache: db is nil")
	}

	q := `
	SELECT distance_meters
	FROM route_distance_cache
	WHERE origin_key = $1
		AND destination_key = $2
		AND ($3::bigint = 0 OR updated_at > now() - make_interval(secs => $3::bigint));
	`

	var meters int
	err = s.DB.QueryRowContext(ctx, q, origin.Key(), destination.Key(), int64(s.TTL.Seconds())).Scan(&meters)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get distance cache: %w", err)
	}

	return meters, true, nil
}

// Put upserts one pair distance.
func (s *SQLDistanceCache) Put(
	ctx context.Context,
	origin domain.Coordinates,
	destination domain.Coordinates,
	meters int,
) error {
	if s.DB == nil {
		return errors.New("distance cache: db is nil")
	}

	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO route_distance_cache (origin_key, destination_key, distance_meters, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (origin_key, destination_key) DO UPDATE
	SET distance_meters = EXCLUDED.distance_meters,
		updated_at = EXCLUDED.updated_at;
	`, origin.Key(), destination.Key(), meters)
	if err != nil {
		return fmt.Errorf("insert distance cache %s -> %s: %w", origin.Key(), destination.Key(), err)
	}

	return nil
}
