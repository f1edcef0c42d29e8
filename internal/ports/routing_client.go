package ports

import (
	"context"
	"courier-route-service/internal/domain"
)

// RoutingClient issues one point-to-point road distance query.
// Failures wrap domain.ErrRoutingUnreachable, domain.ErrRoutingTimeout or
// domain.ErrRoutingService. Implementations must not retry.
type RoutingClient interface {
	Query(ctx context.Context, origin, destination domain.Coordinates) (meters int, err error)
}

// DistanceCache stores resolved pair distances between coordinates.
type DistanceCache interface {
	Get(ctx context.Context, origin, destination domain.Coordinates) (meters int, ok bool, err error)
	Put(ctx context.Context, origin, destination domain.Coordinates, meters int) error
}
