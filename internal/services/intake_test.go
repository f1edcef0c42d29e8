package services

import (
	"context"
	"courier-route-service/internal/adapters/distance"
	"courier-route-service/internal/domain"
	"courier-route-service/internal/ports"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type mapGeocoder struct {
	mu    sync.Mutex
	known map[string]domain.Coordinates
	fail  error
}

func (g *mapGeocoder) Resolve(_ context.Context, label string) (domain.Coordinates, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return domain.Coordinates{}, g.fail
	}
	c, ok := g.known[label]
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("%q: %w", label, domain.ErrAddressNotFound)
	}
	return c, nil
}

func newGeocoder(labels ...string) *mapGeocoder {
	g := &mapGeocoder{known: map[string]domain.Coordinates{}}
	for i, l := range labels {
		g.known[l] = stopAt(l, i+1).Coordinates
	}
	return g
}

func TestResolverKeepsInputOrder(t *testing.T) {
	labels := []string{"E", "D", "C", "B", "A", "F", "G", "H"}
	r := NewResolver(newGeocoder(labels...), 3)

	stops, missing, err := r.Resolve(context.Background(), labels)
	require.NoError(t, err)
	require.Empty(t, missing)
	require.Equal(t, labels, stopLabels(stops))
}

func TestResolverReportsMissingAddresses(t *testing.T) {
	r := NewResolver(newGeocoder("A", "C"), 0)

	stops, missing, err := r.Resolve(context.Background(), []string{"A", "B", " ", "C"})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "C"}, stopLabels(stops))
	require.Equal(t, []string{"B"}, missing)
}

func TestResolverAbortsOnGeocoderOutage(t *testing.T) {
	g := newGeocoder("A")
	g.fail = errors.New("connection refused")

	_, _, err := NewResolver(g, 2).Resolve(context.Background(), []string{"A"})
	require.ErrorContains(t, err, "connection refused")
}

func TestIntakeAppliesEventsInOrder(t *testing.T) {
	s, _, rep := startSession(t, distance.NewMockRoutingClient(nil))
	in := NewIntake(s, NewResolver(newGeocoder("A", "B", "C", "D"), 2), rep)
	ctx := context.Background()

	require.NoError(t, in.HandleStopEvent(ctx, domain.ReplaceStops{Labels: []string{"A", "B", "Nowhere"}}))
	require.NoError(t, in.HandleStopEvent(ctx, domain.AddStops{Labels: []string{"C", "D"}}))
	require.NoError(t, in.HandleStopEvent(ctx, domain.DeleteStops{Indices: []int{0, 2}}))

	require.Equal(t, []string{"B", "D"}, stopLabels(s.Snapshot().Stops))
	require.Equal(t, []string{"address_not_found"}, rep.reasons())
}

func TestIntakeRejectsUnknownEvents(t *testing.T) {
	s, _, rep := startSession(t, distance.NewMockRoutingClient(nil))
	in := NewIntake(s, NewResolver(newGeocoder(), 1), rep)

	err := in.HandleStopEvent(context.Background(), "reboot")
	require.ErrorIs(t, err, domain.ErrMalformedEvent)
	require.Equal(t, []string{"malformed_event"}, rep.reasons())
}

type fakeEvents struct {
	handler ports.StopEventHandler
}

func (f *fakeEvents) OnStopEvent(h ports.StopEventHandler) { f.handler = h }

func TestIntakeBindRoutesAnswersToSession(t *testing.T) {
	s, ch, rep := startSession(t, distance.NewMockRoutingClient(nil))
	in := NewIntake(s, NewResolver(newGeocoder("A", "B"), 1), rep)
	events := &fakeEvents{}
	in.Bind(events, ch)

	ctx := context.Background()
	events.handler(ctx, domain.ReplaceStops{Labels: []string{"A", "B"}})
	require.Equal(t, 2, s.Snapshot().Size())

	id, err := s.Optimize(ctx)
	require.NoError(t, err)
	ch.next(t)

	ch.handler(ctx, domain.PermutationAnswer{Order: []int{1, 0}, CycleID: id})
	order, ok := s.Order()
	require.True(t, ok)
	require.Equal(t, []string{"B", "A"}, stopLabels(order.Stops))
}
