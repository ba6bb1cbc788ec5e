package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// Point is a coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b Point) float64 {
	if a == b {
		return 0
	}
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Fence is a circular perimeter around an office location.
type Fence struct {
	Center       Point
	RadiusMeters float64
}

// NewFence builds a fence from the configured office location.
func NewFence(lat, lon, radiusMeters float64) Fence {
	return Fence{Center: Point{Latitude: lat, Longitude: lon}, RadiusMeters: radiusMeters}
}

// Contains reports whether p lies inside the fence. The boundary is inclusive.
func (f Fence) Contains(p Point) bool {
	return Distance(p, f.Center) <= f.RadiusMeters
}

// DistanceFrom returns how far p is from the fence center.
func (f Fence) DistanceFrom(p Point) float64 {
	return Distance(p, f.Center)
}
