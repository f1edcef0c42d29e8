package distance

import (
	"bytes"
	"context"
	"courier-route-service/internal/domain"
	"courier-route-service/internal/platform/obs"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
)

type matrixRequest struct {
	Locations    [][]float64 `json:"locations"`
	Destinations []int       `json:"destinations"`
	Metrics      []string    `json:"metrics"`
	Sources      []int       `json:"sources"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
}

// Query returns the driving distance in meters from origin to destination
// using a 1x1 request against the ORS matrix endpoint. It does not retry.
func (o *ORSClient) Query(
	ctx context.Context,
	origin domain.Coordinates,
	destination domain.Coordinates,
) (_ int, err error) {
	defer obs.Time(ctx, "ors.Query")(&err)

	if origin == destination {
		return 0, nil
	}

	endpoint := fmt.Sprintf("%s/v2/matrix/%s", o.baseURL, o.profile)

	payload, err := json.Marshal(matrixRequest{
		Locations:    [][]float64{origin.CoordsToList(), destination.CoordsToList()},
		Sources:      []int{0},
		Destinations: []int{1},
		Metrics:      []string{"distance"},
	})
	if err != nil {
		return 0, fmt.Errorf("marshal matrix request: %w", err)
	}

	req, err := o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}

	resp, err := o.do(req)
	if err != nil {
		return 0, fmt.Errorf("matrix request: %w", classify(err))
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return 0, fmt.Errorf("decode matrix response: %w: %v", domain.ErrRoutingService, err)
	}

	if len(mr.Distances) != 1 || len(mr.Distances[0]) != 1 {
		return 0, fmt.Errorf("expected a 1x1 matrix, got %d rows: %w", len(mr.Distances), domain.ErrRoutingService)
	}

	meters := mr.Distances[0][0]
	if meters == nil {
		return 0, fmt.Errorf("no route between %s and %s: %w", origin.Key(), destination.Key(), domain.ErrRoutingUnreachable)
	}

	// ORS returns float metrics; round to nearest integer meter.
	return int(math.Round(*meters)), nil
}
