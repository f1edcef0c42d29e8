package ports

import (
	"context"
	"courier-route-service/internal/domain"
)

// Geocoder resolves a free-text address label. Unknown labels return domain.ErrAddressNotFound.
type Geocoder interface {
	Resolve(ctx context.Context, label string) (domain.Coordinates, error)
}

// PositionSource returns the device position, or domain.ErrLocationUnavailable
// while no fix is available, or domain.ErrPermissionDenied.
type PositionSource interface {
	CurrentCoordinate(ctx context.Context) (domain.Coordinates, error)
}

// MapLinker renders an ordered coordinate sequence as a link an external map viewer can open.
type MapLinker interface {
	Link(route []domain.Coordinates) (string, error)
}
