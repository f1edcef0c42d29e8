package distance

import (
	"context"
	"courier-route-service/internal/domain"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memDistanceCache struct {
	mu sync.Mutex
	m  map[string]int
}

func (c *memDistanceCache) Get(_ context.Context, o, d domain.Coordinates) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[o.Key()+"|"+d.Key()]
	return v, ok, nil
}

func (c *memDistanceCache) Put(_ context.Context, o, d domain.Coordinates, meters int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[o.Key()+"|"+d.Key()] = meters
	return nil
}

func TestCachedClientReadsThrough(t *testing.T) {
	mock := NewMockRoutingClient([]MockPair{{From: spb1, To: spb2, Meters: 4200}})
	c := NewCachedClient(mock, &memDistanceCache{m: map[string]int{}})

	for i := 0; i < 3; i++ {
		meters, err := c.Query(context.Background(), spb1, spb2)
		require.NoError(t, err)
		require.Equal(t, 4200, meters)
	}
	require.Equal(t, 1, mock.Calls())
}

func TestCachedClientDoesNotCacheFailures(t *testing.T) {
	mock := NewMockRoutingClient(nil)
	mock.Fail(spb1, spb2, domain.ErrRoutingUnreachable)
	cache := &memDistanceCache{m: map[string]int{}}
	c := NewCachedClient(mock, cache)

	_, err := c.Query(context.Background(), spb1, spb2)
	require.ErrorIs(t, err, domain.ErrRoutingUnreachable)
	require.Empty(t, cache.m)
}

func TestRateLimitedClientHonoursDeadline(t *testing.T) {
	mock := NewMockRoutingClient(nil)
	c := NewRateLimitedClient(mock, 0.001, 1)

	_, err := c.Query(context.Background(), spb1, spb2)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Query(ctx, spb1, spb2)
	require.ErrorIs(t, err, domain.ErrRoutingTimeout)
	require.Equal(t, 1, mock.Calls())
}

type countingGeocoder struct {
	calls int
	c     domain.Coordinates
	err   error
}

func (g *countingGeocoder) Resolve(context.Context, string) (domain.Coordinates, error) {
	g.calls++
	return g.c, g.err
}

type memGeocodeStore struct {
	m map[string]domain.Coordinates
}

func (s *memGeocodeStore) GetMany(_ context.Context, labels []string) (map[string]domain.Coordinates, error) {
	out := map[string]domain.Coordinates{}
	for _, l := range labels {
		if c, ok := s.m[l]; ok {
			out[l] = c
		}
	}
	return out, nil
}

func (s *memGeocodeStore) PutMany(_ context.Context, results map[string]domain.Coordinates) error {
	for k, v := range results {
		s.m[k] = v
	}
	return nil
}

func TestCachedGeocoderTiers(t *testing.T) {
	next := &countingGeocoder{c: spb2}
	store := &memGeocodeStore{m: map[string]domain.Coordinates{"Palace Square": spb1}}
	g := NewCachedGeocoder(next, time.Minute, store)

	got, err := g.Resolve(context.Background(), "Palace  Square")
	require.NoError(t, err)
	require.Equal(t, spb1, got)
	require.Zero(t, next.calls)

	got, err = g.Resolve(context.Background(), "Moskovsky station")
	require.NoError(t, err)
	require.Equal(t, spb2, got)
	_, err = g.Resolve(context.Background(), "Moskovsky station")
	require.NoError(t, err)
	require.Equal(t, 1, next.calls)
	require.Equal(t, spb2, store.m["Moskovsky station"])
}

func TestCachedGeocoderPassesNotFound(t *testing.T) {
	next := &countingGeocoder{err: domain.ErrAddressNotFound}
	g := NewCachedGeocoder(next, time.Minute, nil)

	_, err := g.Resolve(context.Background(), "nowhere")
	require.True(t, errors.Is(err, domain.ErrAddressNotFound))
}
