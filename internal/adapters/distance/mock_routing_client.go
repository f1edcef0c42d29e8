package distance

import (
	"context"
	"courier-route-service/internal/domain"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

type MockPair struct {
	From, To domain.Coordinates
	Meters   int
}

// MockRoutingClient is an in-memory RoutingClient for tests and offline runs.
// Pairs are symmetric. Unknown pairs fall back to a straight-line estimate.
type MockRoutingClient struct {
	mu       sync.Mutex
	m        map[string]int
	failures map[string]error
	delays   map[string]time.Duration
	hangs    map[string]bool
	release  chan struct{}
	once     sync.Once
	calls    atomic.Int64
}

func NewMockRoutingClient(pairs []MockPair) *MockRoutingClient {
	m := make(map[string]int, len(pairs))
	for _, p := range pairs {
		m[pairKey(p.From, p.To)] = p.Meters
	}
	return &MockRoutingClient{
		m:        m,
		failures: map[string]error{},
		delays:   map[string]time.Duration{},
		hangs:    map[string]bool{},
		release:  make(chan struct{}),
	}
}

// Fail makes every query for the pair return err.
func (c *MockRoutingClient) Fail(a, b domain.Coordinates, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[pairKey(a, b)] = err
}

// Delay makes queries for the pair wait d (or until ctx is done).
func (c *MockRoutingClient) Delay(a, b domain.Coordinates, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delays[pairKey(a, b)] = d
}

// Hang makes queries for the pair block, ignoring ctx, until Release is called.
func (c *MockRoutingClient) Hang(a, b domain.Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hangs[pairKey(a, b)] = true
}

func (c *MockRoutingClient) Release() {
	c.once.Do(func() { close(c.release) })
}

// Calls returns how many queries have been issued.
func (c *MockRoutingClient) Calls() int { return int(c.calls.Load()) }

func (c *MockRoutingClient) Query(ctx context.Context, origin, destination domain.Coordinates) (int, error) {
	c.calls.Add(1)
	key := pairKey(origin, destination)

	c.mu.Lock()
	hang := c.hangs[key]
	delay := c.delays[key]
	failure := c.failures[key]
	meters, ok := c.m[key]
	c.mu.Unlock()

	if hang {
		<-c.release
	}

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return 0, fmt.Errorf("mock query: %w: %v", domain.ErrRoutingTimeout, ctx.Err())
		case <-t.C:
		}
	}

	if failure != nil {
		return 0, failure
	}
	if !ok {
		meters = straightLine(origin, destination)
	}

	return meters, nil
}

func pairKey(a, b domain.Coordinates) string {
	ka, kb := a.Key(), b.Key()
	if kb < ka {
		ka, kb = kb, ka
	}
	return ka + "|" + kb
}

// straightLine is the haversine distance in meters.
func straightLine(a, b domain.Coordinates) int {
	const earthRadius = 6371000.0
	rad := math.Pi / 180

	dLat := (b.Lat - a.Lat) * rad
	dLon := (b.Lon - a.Lon) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return int(math.Round(2 * earthRadius * math.Asin(math.Sqrt(h))))
}
