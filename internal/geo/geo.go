// Package geo contains pure geographic computation helpers and the thin
// clients for the external geocoding and routing providers.
package geo

import (
	"math"

	"rideconnect/internal/types"
)

const earthRadiusKm = 6371.0

// RoadFactor converts a straight-line distance into a road distance estimate.
// City routes typically run 1.3-1.5x the great-circle distance.
const RoadFactor = 1.4

// CitySpeedKmh is the average speed assumed for duration estimates.
const CitySpeedKmh = 25.0

// HaversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func HaversineKm(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// BoundingBox approximates a radius around a centre point. One degree of
// latitude is ~111 km; longitude degrees shrink with cos(lat). Used as a
// cheap pre-filter before exact distance computation.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

func NewBoundingBox(center types.Point, radiusKm float64) BoundingBox {
	latRange := radiusKm / 111.0
	lngRange := radiusKm / (111.0 * math.Abs(math.Cos(degreesToRadians(center.Lat))))
	return BoundingBox{
		MinLat: center.Lat - latRange,
		MaxLat: center.Lat + latRange,
		MinLng: center.Lng - lngRange,
		MaxLng: center.Lng + lngRange,
	}
}

func (b BoundingBox) Contains(p types.Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// RouteInfo is the distance/duration contract consumed by booking and
// matching. Fallback marks estimates derived from straight-line distance
// rather than a routing provider.
type RouteInfo struct {
	DistanceKm  float64
	DurationMin int
	Fallback    bool
}

// EstimateRoute returns a road-factor estimate between two points. It never
// fails; a degraded estimate is preferred over blocking ride creation.
func EstimateRoute(origin, dest types.Point) RouteInfo {
	roadKm := HaversineKm(origin, dest) * RoadFactor
	return RouteInfo{
		DistanceKm:  math.Round(roadKm*100) / 100,
		DurationMin: int(roadKm / CitySpeedKmh * 60),
		Fallback:    true,
	}
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
