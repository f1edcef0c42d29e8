package services

import (
	"context"
	"courier-route-service/internal/domain"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	mu      sync.Mutex
	results []error
	fix     domain.Coordinates
	calls   int
}

func (s *scriptedSource) CurrentCoordinate(context.Context) (domain.Coordinates, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) > 0 {
		err := s.results[0]
		s.results = s.results[1:]
		if err != nil {
			return domain.Coordinates{}, err
		}
	}
	return s.fix, nil
}

type recordingSink struct {
	pinned []domain.Coordinates
}

func (r *recordingSink) UpdatePosition(_ context.Context, c domain.Coordinates) (bool, error) {
	r.pinned = append(r.pinned, c)
	return true, nil
}

func TestLocatorRetriesUntilFix(t *testing.T) {
	src := &scriptedSource{
		results: []error{domain.ErrLocationUnavailable, domain.ErrLocationUnavailable},
		fix:     courierAt,
	}
	sink := &recordingSink{}

	err := NewLocator(src, sink, time.Millisecond, 0).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, src.calls)
	require.Equal(t, []domain.Coordinates{courierAt}, sink.pinned)
}

func TestLocatorStopsOnPermissionDenied(t *testing.T) {
	src := &scriptedSource{results: []error{domain.ErrPermissionDenied}}
	sink := &recordingSink{}

	require.NoError(t, NewLocator(src, sink, time.Millisecond, 0).Run(context.Background()))
	require.Empty(t, sink.pinned)
}

func TestLocatorPinsIntoSession(t *testing.T) {
	s, _, _ := startSession(t, nil)
	_, err := s.Replace(context.Background(), []domain.Stop{stopAt("A", 1)})
	require.NoError(t, err)

	src := &scriptedSource{fix: courierAt}
	require.NoError(t, NewLocator(src, s, time.Millisecond, 0).Run(context.Background()))

	snap := s.Snapshot()
	require.Equal(t, 2, snap.Size())
	require.True(t, snap.Stops[0].IsCurrentPosition)
	require.Equal(t, courierAt, snap.Stops[0].Coordinates)
}
