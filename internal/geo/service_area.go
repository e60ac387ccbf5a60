package geo

import "rideconnect/internal/types"

// Bounds is the configured service area. Coordinates outside it are rejected
// by booking validation.
type Bounds struct {
	North, South, East, West float64
}

// LisbonBounds covers greater Lisbon from Cascais to the airport.
func LisbonBounds() Bounds {
	return Bounds{North: 38.85, South: 38.60, East: -9.00, West: -9.50}
}

func (b Bounds) Contains(p types.Point) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lng >= b.West && p.Lng <= b.East
}
