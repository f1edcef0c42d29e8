package handlers

import (
	"courier-route-service/internal/api/dto"
	"courier-route-service/internal/domain"
	"courier-route-service/internal/ports"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

// RouteHandler exposes the stop set, the optimization cycle and the route to the UI.
type RouteHandler struct {
	Session ports.RouteSession
	Linker  ports.MapLinker
}

func (h *RouteHandler) Stops(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	snap := h.Session.Snapshot()
	writeJSON(w, r, http.StatusOK, dto.ListStopsResponse{
		Generation: snap.Generation,
		Stops:      toStops(snap.Stops),
	})
}

// Optimize starts a new cycle. The matrix is built and published asynchronously.
func (h *RouteHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	id, err := h.Session.Optimize(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("start optimization failed")
		writeError(w, r, http.StatusServiceUnavailable, "session unavailable")
		return
	}

	writeJSON(w, r, http.StatusAccepted, dto.OptimizeResponse{CycleID: id})
}

func (h *RouteHandler) Cycle(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	st := h.Session.Status()
	writeJSON(w, r, http.StatusOK, dto.CycleResponse{
		ID:         st.ID,
		Phase:      string(st.Phase),
		Generation: st.Generation,
		Size:       st.Size,
		Partial:    st.Partial,
		Outcome:    string(st.Outcome),
		Reason:     st.Reason,
		UpdatedAt:  st.UpdatedAt,
	})
}

// Route returns the stops in plain (dispatcher) order or in optimized order,
// with a link for an external map viewer.
func (h *RouteHandler) Route(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "plain"
	}

	res := dto.RouteResponse{Mode: mode}
	var stops []domain.Stop

	switch mode {
	case "plain":
		snap := h.Session.Snapshot()
		res.Generation = snap.Generation
		stops = snap.Stops
	case "optimized":
		order, ok := h.Session.Order()
		if !ok {
			writeError(w, r, http.StatusConflict, "optimize the route first")
			return
		}
		res.Generation = order.Generation
		res.CycleID = order.CycleID
		stops = order.Stops
	default:
		writeError(w, r, http.StatusBadRequest, "mode must be plain or optimized")
		return
	}

	if len(stops) == 0 {
		writeError(w, r, http.StatusNotFound, "no stops")
		return
	}

	coords := make([]domain.Coordinates, len(stops))
	for i, s := range stops {
		coords[i] = s.Coordinates
	}

	link, err := h.Linker.Link(coords)
	if err != nil && !errors.Is(err, domain.ErrNoStops) {
		log.Error().Err(err).Msg("build map link failed")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res.Stops = toStops(stops)
	res.MapURL = link
	writeJSON(w, r, http.StatusOK, res)
}
