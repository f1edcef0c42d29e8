package services

import (
	"context"
	"courier-route-service/internal/domain"
	"sync"
	"testing"
	"time"
)

// stopAt builds a stop with distinct coordinates for fixture index i.
func stopAt(label string, i int) domain.Stop {
	return domain.NewStop(label, domain.Coordinates{Lon: 30.30 + float64(i)*0.01, Lat: 59.90})
}

func snapshotOf(gen uint64, stops ...domain.Stop) domain.Snapshot {
	return domain.Snapshot{Stops: stops, Generation: gen}
}

func stopLabels(stops []domain.Stop) []string {
	out := make([]string, 0, len(stops))
	for _, s := range stops {
		out = append(out, s.Label)
	}
	return out
}

type fakeChannel struct {
	mu        sync.Mutex
	published []domain.DistanceMatrix
	notify    chan domain.DistanceMatrix
	err       error
	handler   func(ctx context.Context, ans domain.PermutationAnswer)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{notify: make(chan domain.DistanceMatrix, 16)}
}

func (c *fakeChannel) Publish(_ context.Context, m domain.DistanceMatrix) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, m)
	c.notify <- m
	return nil
}

func (c *fakeChannel) OnPermutation(h func(ctx context.Context, ans domain.PermutationAnswer)) {
	c.handler = h
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

func (c *fakeChannel) next(t *testing.T) domain.DistanceMatrix {
	t.Helper()
	select {
	case m := <-c.notify:
		return m
	case <-time.After(3 * time.Second):
		t.Fatal("no matrix published")
		return domain.DistanceMatrix{}
	}
}

type rejection struct {
	reason string
	detail string
}

type fakeReporter struct {
	mu         sync.Mutex
	acked      []uint64
	rejections []rejection
}

func (r *fakeReporter) StopsChanged(_ context.Context, generation uint64, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acked = append(r.acked, generation)
	return nil
}

func (r *fakeReporter) Rejected(_ context.Context, reason, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejections = append(r.rejections, rejection{reason: reason, detail: detail})
	return nil
}

func (r *fakeReporter) reasons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.rejections))
	for _, rj := range r.rejections {
		out = append(out, rj.reason)
	}
	return out
}
