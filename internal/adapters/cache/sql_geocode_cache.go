package cache

import (
	"context"
	"courier-route-service/internal/domain"
	"courier-route-service/internal/platform/obs"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SQLGeocodeCache is a Postgres-backed store mapping address labels to coordinates.
// Rows older than TTL are ignored on read; a zero TTL keeps them forever.
type SQLGeocodeCache struct {
	DB  *sql.DB
	TTL time.Duration
}

func NewSQLGeocodeCache(db *sql.DB, ttl time.Duration) *SQLGeocodeCache {
	return &SQLGeocodeCache{DB: db, TTL: ttl}
}

// GetMany returns the cached coordinates for labels. Missing or expired labels
// are absent from the result.
func (s *SQLGeocodeCache) GetMany(ctx context.Context, labels []string) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, "geocode.cache.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("geocode cache: db is nil")
	}

	uniq := uniqueLabels(labels)
	if len(uniq) == 0 {
		return map[string]domain.Coordinates{}, nil
	}

	var cutoff time.Time
	if s.TTL > 0 {
		cutoff = time.Now().Add(-s.TTL)
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT label, lon, lat
	FROM geocode_cache
	WHERE label = ANY($1::text[]) AND resolved_at >= $2;
	`, uniq, cutoff)
	if err != nil {
		return nil, fmt.Errorf("read geocode cache: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Coordinates, len(uniq))
	for rows.Next() {
		var label string
		var c domain.Coordinates
		if err := rows.Scan(&label, &c.Lon, &c.Lat); err != nil {
			return nil, fmt.Errorf("read geocode cache: scan: %w", err)
		}
		out[label] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read geocode cache: %w", err)
	}

	return out, nil
}

// PutMany upserts every mapping in a single statement and refreshes resolved_at.
func (s *SQLGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) (err error) {
	defer obs.Time(ctx, "geocode.cache.PutMany")(&err)

	if s.DB == nil {
		return errors.New("geocode cache: db is nil")
	}
	if len(results) == 0 {
		return nil
	}

	labels := make([]string, 0, len(results))
	for label, c := range results {
		if strings.TrimSpace(label) == "" {
			return errors.New("write geocode cache: empty label")
		}
		if !c.Valid() {
			return fmt.Errorf("write geocode cache label=%q: invalid coordinate %+v", label, c)
		}
		labels = append(labels, label)
	}
	sort.Strings(labels)

	lons := make([]float64, len(labels))
	lats := make([]float64, len(labels))
	for i, label := range labels {
		lons[i] = results[label].Lon
		lats[i] = results[label].Lat
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO geocode_cache (label, lon, lat, resolved_at)
	SELECT u.label, u.lon, u.lat, now()
	FROM unnest($1::text[], $2::float8[], $3::float8[]) AS u(label, lon, lat)
	ON CONFLICT (label) DO UPDATE
	SET lon = EXCLUDED.lon,
		lat = EXCLUDED.lat,
		resolved_at = EXCLUDED.resolved_at;
	`, labels, lons, lats)
	if err != nil {
		return fmt.Errorf("write geocode cache: %w", err)
	}

	return nil
}

func uniqueLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
