package distance

import (
	"context"
	"courier-route-service/internal/domain"
	"courier-route-service/internal/platform/obs"
	"fmt"
	"strconv"

	"googlemaps.github.io/maps"
)

// GoogleClient implements ports.RoutingClient with the Directions API and
// ports.Geocoder with the Geocoding API.
type GoogleClient struct {
	client *maps.Client
}

func NewGoogleClient(apiKey string, opts ...maps.ClientOption) (*GoogleClient, error) {
	opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &GoogleClient{client: client}, nil
}

func (g *GoogleClient) Query(ctx context.Context, origin, destination domain.Coordinates) (_ int, err error) {
	defer obs.Time(ctx, "google.Query")(&err)

	if origin == destination {
		return 0, nil
	}

	routes, _, err := g.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      latLng(origin),
		Destination: latLng(destination),
		Mode:        maps.TravelModeDriving,
	})
	if err != nil {
		return 0, fmt.Errorf("directions: %w", classify(err))
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, fmt.Errorf("no route between %s and %s: %w", origin.Key(), destination.Key(), domain.ErrRoutingUnreachable)
	}

	meters := 0
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
	}
	return meters, nil
}

func (g *GoogleClient) Resolve(ctx context.Context, label string) (_ domain.Coordinates, err error) {
	defer obs.Time(ctx, "google.Resolve")(&err)

	norm := normalize(label)
	if norm == "" {
		return domain.Coordinates{}, fmt.Errorf("empty label: %w", domain.ErrAddressNotFound)
	}

	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: norm})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", norm, err)
	}
	if len(results) == 0 {
		return domain.Coordinates{}, fmt.Errorf("%q: %w", norm, domain.ErrAddressNotFound)
	}

	loc := results[0].Geometry.Location
	return domain.Coordinates{Lon: loc.Lng, Lat: loc.Lat}, nil
}

// latLng renders c the way the Maps web services expect ("lat,lng").
func latLng(c domain.Coordinates) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}
