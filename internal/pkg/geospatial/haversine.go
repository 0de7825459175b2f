package geospatial

import (
	"math"

	"github.com/kabina/kabinaview/internal/core/domain"
)

const earthRadiusMeters = 6371000.0

// Distance is the great-circle distance in meters between two coordinates.
func Distance(a, b domain.GeoCoordinate) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
