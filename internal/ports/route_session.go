package ports

import (
	"context"
	"courier-route-service/internal/domain"
)

// RouteSession is the read and trigger surface used by the UI-facing caller.
type RouteSession interface {
	Snapshot() domain.Snapshot
	Status() domain.CycleStatus
	Order() (domain.OptimizedOrder, bool)
	Optimize(ctx context.Context) (string, error)
}
