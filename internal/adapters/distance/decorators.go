package distance

import (
	"context"
	"courier-route-service/internal/domain"
	"courier-route-service/internal/ports"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// CachedClient serves pair distances from a DistanceCache and fills it on miss.
// Cache failures are logged and never fail the query.
type CachedClient struct {
	next  ports.RoutingClient
	cache ports.DistanceCache
}

func NewCachedClient(next ports.RoutingClient, cache ports.DistanceCache) *CachedClient {
	return &CachedClient{next: next, cache: cache}
}

func (c *CachedClient) Query(ctx context.Context, origin, destination domain.Coordinates) (int, error) {
	meters, ok, err := c.cache.Get(ctx, origin, destination)
	if err != nil {
		log.Warn().Err(err).Msg("distance cache read failed")
	}
	if ok {
		return meters, nil
	}

	meters, err = c.next.Query(ctx, origin, destination)
	if err != nil {
		return 0, err
	}

	if err := c.cache.Put(ctx, origin, destination, meters); err != nil {
		log.Warn().Err(err).Msg("distance cache write failed")
	}
	return meters, nil
}

// RateLimitedClient spaces out queries to stay under the provider's quota.
// Waiting counts against the caller's deadline.
type RateLimitedClient struct {
	next    ports.RoutingClient
	limiter *rate.Limiter
}

func NewRateLimitedClient(next ports.RoutingClient, perSecond float64, burst int) *RateLimitedClient {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedClient{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (c *RateLimitedClient) Query(ctx context.Context, origin, destination domain.Coordinates) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit: %w: %v", domain.ErrRoutingTimeout, err)
	}
	return c.next.Query(ctx, origin, destination)
}
