package handlers

import (
	"courier-route-service/internal/api/dto"
	"courier-route-service/internal/domain"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("encode failed")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func toStops(stops []domain.Stop) []dto.StopResponse {
	out := make([]dto.StopResponse, 0, len(stops))
	for i, s := range stops {
		out = append(out, dto.StopResponse{
			Index:             i,
			Label:             s.Label,
			Lat:               s.Coordinates.Lat,
			Lon:               s.Coordinates.Lon,
			IsCurrentPosition: s.IsCurrentPosition,
		})
	}
	return out
}
