package geo

import (
	"math"

	"securestop-backend/internal/models"
)

const (
	earthRadius = 6371000 // Earth radius in meters

	// kmPerDegree approximates the length of one degree of latitude
	kmPerDegree = 111.0

	DefaultSpeedKph = 25.0
	MinSpeedKph     = 5.0
)

// DistanceMeters returns the great-circle distance between two points in meters
func DistanceMeters(a, b models.LatLng) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadius * c
}

// Within reports whether p lies within radius meters of center
func Within(p, center models.LatLng, radius float64) bool {
	return DistanceMeters(p, center) <= radius
}

// NearestStopIndex returns the index of the stop closest to p using squared
// degree distance. It returns -1 when there are no stops.
func NearestStopIndex(p models.LatLng, stops []models.Stop) int {
	best := -1
	bestD := math.Inf(1)
	for i, s := range stops {
		dLat := s.Location.Lat - p.Lat
		dLng := s.Location.Lng - p.Lng
		d := dLat*dLat + dLng*dLng
		if d < bestD {
			bestD = d
			best = i
		}
	}
	return best
}

// EtaMinutes estimates the minutes needed to reach stop from p.
// A nil speed uses DefaultSpeedKph; speeds are floored at MinSpeedKph.
// The result is never below one minute.
func EtaMinutes(p, stop models.LatLng, speedKph *float64) int {
	speed := DefaultSpeedKph
	if speedKph != nil {
		speed = *speedKph
	}
	speed = math.Max(MinSpeedKph, speed)

	dLat := stop.Lat - p.Lat
	dLng := stop.Lng - p.Lng
	km := math.Sqrt(dLat*dLat+dLng*dLng) * kmPerDegree

	minutes := int(math.Round(km / speed * 60))
	if minutes < 1 {
		return 1
	}
	return minutes
}
