package domain

import "strconv"

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64
	Lat float64
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Key renders the coordinate rounded to 5 decimals (about one meter), used for cache keys.
func (c Coordinates) Key() string {
	return strconv.FormatFloat(c.Lat, 'f', 5, 64) + "," + strconv.FormatFloat(c.Lon, 'f', 5, 64)
}

// Valid reports whether the coordinate lies within WGS84 bounds.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}
