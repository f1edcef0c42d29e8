package distance

import (
	"context"
	"courier-route-service/internal/domain"
	"courier-route-service/internal/platform/obs"
	"encoding/json"
	"fmt"
	"net/http"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Resolve geocodes one address label with /geocode/search, retrying transient failures.
func (o *ORSClient) Resolve(ctx context.Context, label string) (_ domain.Coordinates, err error) {
	defer obs.Time(ctx, "ors.Resolve")(&err)

	norm := normalize(label)
	if norm == "" {
		return domain.Coordinates{}, fmt.Errorf("empty label: %w", domain.ErrAddressNotFound)
	}

	endpoint := o.baseURL + "/geocode/search"

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := o.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("text", norm)
		q.Set("size", "1")
		if o.country != "" {
			q.Set("boundary.country", o.country)
		}
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", norm, err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Coordinates{}, fmt.Errorf("decode geocode response: %w", err)
	}

	if len(decoded.Features) == 0 {
		return domain.Coordinates{}, fmt.Errorf("%q: %w", norm, domain.ErrAddressNotFound)
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return domain.Coordinates{}, fmt.Errorf("invalid coordinate format for %q", norm)
	}

	return domain.Coordinates{Lon: coords[0], Lat: coords[1]}, nil
}
