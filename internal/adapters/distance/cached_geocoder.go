package distance

import (
	"context"
	"courier-route-service/internal/domain"
	"courier-route-service/internal/ports"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// GeocodeStore is a persistent label -> coordinate store.
type GeocodeStore interface {
	GetMany(ctx context.Context, labels []string) (map[string]domain.Coordinates, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}

// CachedGeocoder checks an in-memory TTL cache, then an optional persistent
// store, before calling the wrapped geocoder.
type CachedGeocoder struct {
	next  ports.Geocoder
	mem   *gocache.Cache
	store GeocodeStore
}

func NewCachedGeocoder(next ports.Geocoder, ttl time.Duration, store GeocodeStore) *CachedGeocoder {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedGeocoder{
		next:  next,
		mem:   gocache.New(ttl, 2*ttl),
		store: store,
	}
}

func (g *CachedGeocoder) Resolve(ctx context.Context, label string) (domain.Coordinates, error) {
	key := normalize(label)

	if v, ok := g.mem.Get(key); ok {
		return v.(domain.Coordinates), nil
	}

	if g.store != nil {
		hits, err := g.store.GetMany(ctx, []string{key})
		if err != nil {
			log.Warn().Err(err).Msg("geocode store read failed")
		} else if c, ok := hits[key]; ok {
			g.mem.SetDefault(key, c)
			return c, nil
		}
	}

	c, err := g.next.Resolve(ctx, label)
	if err != nil {
		return domain.Coordinates{}, err
	}

	g.mem.SetDefault(key, c)
	if g.store != nil {
		if err := g.store.PutMany(ctx, map[string]domain.Coordinates{key: c}); err != nil {
			log.Warn().Err(err).Msg("geocode store write failed")
		}
	}

	return c, nil
}
