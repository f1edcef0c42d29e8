package ports

import (
	"context"
	"courier-route-service/internal/domain"
)

// OptimizationChannel publishes finished matrices to the remote optimizer
// and delivers its answers. Answers may be late, duplicated, or refer to an
// older publication.
type OptimizationChannel interface {
	Publish(ctx context.Context, m domain.DistanceMatrix) error
	OnPermutation(handler func(ctx context.Context, answer domain.PermutationAnswer))
}

// StopEventHandler receives one of domain.ReplaceStops, domain.AddStops or domain.DeleteStops.
type StopEventHandler func(ctx context.Context, event any)

// EventSource delivers stop mutation events in arrival order.
type EventSource interface {
	OnStopEvent(handler StopEventHandler)
}

// StatusReporter sends acknowledgements and rejections back to the dispatcher.
type StatusReporter interface {
	StopsChanged(ctx context.Context, generation uint64, size int) error
	Rejected(ctx context.Context, reason string, detail string) error
}
