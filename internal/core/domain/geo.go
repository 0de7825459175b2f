package domain

import (
	"encoding/json"
	"math"
)

// GeoCoordinate represents a geographic coordinate (WGS 84).
type GeoCoordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Valid reports whether both axes hold a real number.
// Repositories map NULL columns to NaN.
func (c GeoCoordinate) Valid() bool {
	return !math.IsNaN(c.Lon) && !math.IsNaN(c.Lat) &&
		!math.IsInf(c.Lon, 0) && !math.IsInf(c.Lat, 0)
}

// MissingCoordinate is the placeholder for a row without longitude/latitude.
func MissingCoordinate() GeoCoordinate {
	return GeoCoordinate{Lon: math.NaN(), Lat: math.NaN()}
}

type wireCoordinate struct {
	Lon *float64 `json:"lon"`
	Lat *float64 `json:"lat"`
}

// MarshalJSON writes a missing axis as null.
func (c GeoCoordinate) MarshalJSON() ([]byte, error) {
	var w wireCoordinate
	if !math.IsNaN(c.Lon) && !math.IsInf(c.Lon, 0) {
		w.Lon = &c.Lon
	}
	if !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) {
		w.Lat = &c.Lat
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads a null or absent axis back as NaN.
func (c *GeoCoordinate) UnmarshalJSON(data []byte) error {
	var w wireCoordinate
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = MissingCoordinate()
	if w.Lon != nil {
		c.Lon = *w.Lon
	}
	if w.Lat != nil {
		c.Lat = *w.Lat
	}
	return nil
}

// BoundingBox represents the geographic extent of the map canvas.
type BoundingBox struct {
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
}

// Contains reports whether c lies inside the box, edges included.
func (b BoundingBox) Contains(c GeoCoordinate) bool {
	return c.Lon >= b.MinLon && c.Lon <= b.MaxLon &&
		c.Lat >= b.MinLat && c.Lat <= b.MaxLat
}

// PixelPoint is a canvas position, origin top-left.
type PixelPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Screen flips a latitude-up y into screen space.
func (p PixelPoint) Screen(canvasHeight int) PixelPoint {
	return PixelPoint{X: p.X, Y: canvasHeight - p.Y}
}

// Offset returns p moved by (dx, dy).
func (p PixelPoint) Offset(dx, dy int) PixelPoint {
	return PixelPoint{X: p.X + dx, Y: p.Y + dy}
}

// Rect is an axis-aligned rectangle in canvas space.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}
