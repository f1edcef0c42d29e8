package handlers

import (
	"context"
	"courier-route-service/internal/adapters/maplink"
	"courier-route-service/internal/api/dto"
	"courier-route-service/internal/domain"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	snap     domain.Snapshot
	status   domain.CycleStatus
	order    domain.OptimizedOrder
	hasOrder bool
	err      error
	started  int
}

func (f *fakeSession) Snapshot() domain.Snapshot            { return f.snap }
func (f *fakeSession) Status() domain.CycleStatus           { return f.status }
func (f *fakeSession) Order() (domain.OptimizedOrder, bool) { return f.order, f.hasOrder }

func (f *fakeSession) Optimize(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.started++
	return "cycle-1", nil
}

func twoStops() []domain.Stop {
	return []domain.Stop{
		domain.CurrentPositionStop(domain.Coordinates{Lat: 55.75, Lon: 37.61}),
		domain.NewStop("Tverskaya 1", domain.Coordinates{Lat: 55.76, Lon: 37.60}),
	}
}

func serve(t *testing.T, h http.HandlerFunc, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestStops_ListsSnapshot(t *testing.T) {
	h := &RouteHandler{Session: &fakeSession{snap: domain.Snapshot{Stops: twoStops(), Generation: 4}}, Linker: maplink.NewYandex()}

	rec := serve(t, h.Stops, http.MethodGet, "/stops")
	require.Equal(t, http.StatusOK, rec.Code)

	var res dto.ListStopsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, uint64(4), res.Generation)
	require.Len(t, res.Stops, 2)
	assert.True(t, res.Stops[0].IsCurrentPosition)
	assert.Equal(t, "Tverskaya 1", res.Stops[1].Label)
	assert.Equal(t, 1, res.Stops[1].Index)
}

func TestStops_RejectsWrongMethod(t *testing.T) {
	h := &RouteHandler{Session: &fakeSession{}, Linker: maplink.NewYandex()}

	rec := serve(t, h.Stops, http.MethodPost, "/stops")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestOptimize_Accepted(t *testing.T) {
	s := &fakeSession{}
	h := &RouteHandler{Session: s, Linker: maplink.NewYandex()}

	rec := serve(t, h.Optimize, http.MethodPost, "/optimize")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var res dto.OptimizeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "cycle-1", res.CycleID)
	assert.Equal(t, 1, s.started)
}

func TestOptimize_SessionClosed(t *testing.T) {
	h := &RouteHandler{Session: &fakeSession{err: errors.New("closed")}, Linker: maplink.NewYandex()}

	rec := serve(t, h.Optimize, http.MethodPost, "/optimize")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCycle_ReportsStatus(t *testing.T) {
	st := domain.CycleStatus{ID: "c", Phase: domain.PhaseAwaitingAnswer, Generation: 2, Size: 3, Partial: true}
	h := &RouteHandler{Session: &fakeSession{status: st}, Linker: maplink.NewYandex()}

	rec := serve(t, h.Cycle, http.MethodGet, "/cycle")
	require.Equal(t, http.StatusOK, rec.Code)

	var res dto.CycleResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "c", res.ID)
	assert.Equal(t, string(domain.PhaseAwaitingAnswer), res.Phase)
	assert.Equal(t, 3, res.Size)
	assert.True(t, res.Partial)
}

func TestRoute_PlainByDefault(t *testing.T) {
	h := &RouteHandler{Session: &fakeSession{snap: domain.Snapshot{Stops: twoStops(), Generation: 1}}, Linker: maplink.NewYandex()}

	rec := serve(t, h.Route, http.MethodGet, "/route")
	require.Equal(t, http.StatusOK, rec.Code)

	var res dto.RouteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "plain", res.Mode)
	assert.Len(t, res.Stops, 2)
	assert.Contains(t, res.MapURL, "rtext=55.750000%2C37.610000~55.760000%2C37.600000")
}

func TestRoute_OptimizedUsesOrder(t *testing.T) {
	stops := twoStops()
	order := domain.OptimizedOrder{CycleID: "c9", Generation: 3, Permutation: []int{1, 0}, Stops: []domain.Stop{stops[1], stops[0]}}
	h := &RouteHandler{Session: &fakeSession{order: order, hasOrder: true}, Linker: maplink.NewYandex()}

	rec := serve(t, h.Route, http.MethodGet, "/route?mode=optimized")
	require.Equal(t, http.StatusOK, rec.Code)

	var res dto.RouteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "c9", res.CycleID)
	assert.Equal(t, "Tverskaya 1", res.Stops[0].Label)
}

func TestRoute_Errors(t *testing.T) {
	empty := &RouteHandler{Session: &fakeSession{}, Linker: maplink.NewYandex()}

	assert.Equal(t, http.StatusNotFound, serve(t, empty.Route, http.MethodGet, "/route?mode=plain").Code)
	assert.Equal(t, http.StatusConflict, serve(t, empty.Route, http.MethodGet, "/route?mode=optimized").Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, empty.Route, http.MethodGet, "/route?mode=scenic").Code)
}
