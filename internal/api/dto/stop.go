package dto

import "time"

type StopResponse struct {
	Index             int     `json:"index"`
	Label             string  `json:"label"`
	Lat               float64 `json:"lat"`
	Lon               float64 `json:"lon"`
	IsCurrentPosition bool    `json:"is_current_position,omitempty"`
}

type ListStopsResponse struct {
	Generation uint64         `json:"generation"`
	Stops      []StopResponse `json:"stops"`
}

type RouteResponse struct {
	Mode       string         `json:"mode"`
	Generation uint64         `json:"generation"`
	CycleID    string         `json:"cycle_id,omitempty"`
	Stops      []StopResponse `json:"stops"`
	MapURL     string         `json:"map_url"`
}

type OptimizeResponse struct {
	CycleID string `json:"cycle_id"`
}

type CycleResponse struct {
	ID         string    `json:"id,omitempty"`
	Phase      string    `json:"phase"`
	Generation uint64    `json:"generation"`
	Size       int       `json:"size"`
	Partial    bool      `json:"partial"`
	Outcome    string    `json:"outcome,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}
