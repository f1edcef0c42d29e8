package domain

import "strings"

const CurrentPositionLabel = "Current position"

// Stop is a named location in the route. Stops are values and never mutated after construction.
type Stop struct {
	Label             string
	Coordinates       Coordinates
	IsCurrentPosition bool
}

func NewStop(label string, c Coordinates) Stop {
	return Stop{Label: strings.TrimSpace(label), Coordinates: c}
}

// CurrentPositionStop synthesizes the pseudo-stop pinned at index 0.
func CurrentPositionStop(c Coordinates) Stop {
	return Stop{Label: CurrentPositionLabel, Coordinates: c, IsCurrentPosition: true}
}
