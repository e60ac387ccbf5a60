// README: Driver compatibility scoring: five banded components and their
// weighted total.
package matching

import (
	"rideconnect/internal/config"
	"rideconnect/internal/modules/calendar"
	"rideconnect/internal/modules/driver"
)

// DistanceScore bands the driver's straight-line distance to the pickup.
func DistanceScore(km float64) float64 {
	switch {
	case km <= 1:
		return 100
	case km <= 3:
		return 90
	case km <= 5:
		return 75
	case km <= 10:
		return 50
	case km <= 15:
		return 25
	}
	return 0
}

// ExperienceScore rewards ride volume, with an extra tier for wheelchair
// experience when the ride needs it.
func ExperienceScore(d *driver.Driver, wheelchairRequired bool) float64 {
	score := 50.0

	switch {
	case d.TotalRides > 500:
		score += 20
	case d.TotalRides > 200:
		score += 15
	case d.TotalRides > 50:
		score += 10
	}

	if wheelchairRequired {
		switch {
		case d.WheelchairRides > 100:
			score += 30
		case d.WheelchairRides > 50:
			score += 20
		case d.WheelchairRides > 20:
			score += 10
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}

// AvailabilityScore rates how well the ride sits in the driver's declared
// window: full fit 100, partial overlap 50, no entry 0, discounted as the
// day fills up.
func AvailabilityScore(e *calendar.Entry, startMin, endMin int) float64 {
	if e == nil || e.Status != calendar.StatusAvailable {
		return 0
	}

	var score float64
	switch {
	case e.Covers(startMin, endMin):
		score = 100
	case e.Overlaps(startMin, endMin):
		score = 50
	default:
		return 0
	}

	switch {
	case e.UtilizationPct >= 70:
		score *= 0.7
	case e.UtilizationPct >= 50:
		score *= 0.9
	}
	return score
}

// NearbyRide describes an already-assigned ride relative to the candidate
// slot: repositioning distance and the idle gap between them.
type NearbyRide struct {
	DistanceKm float64
	GapMin     int
}

// EfficiencyScore rates how the new ride chains with the driver's existing
// bookings. No bookings nearby is neutral; a tight, close chain scores up,
// an awkward one scores down.
func EfficiencyScore(nearby []NearbyRide) float64 {
	score := 50.0
	for _, n := range nearby {
		switch {
		case n.DistanceKm < 5 && n.GapMin >= 30 && n.GapMin <= 90:
			score += 25
		case n.DistanceKm < 10 && n.GapMin >= 30 && n.GapMin <= 120:
			score += 15
		default:
			score -= 10
		}
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// RatingScore bands the driver's average rating.
func RatingScore(rating float64) float64 {
	switch {
	case rating >= 4.8:
		return 100
	case rating >= 4.5:
		return 85
	case rating >= 4.0:
		return 70
	case rating >= 3.5:
		return 50
	}
	return 30
}

// TotalScore folds the components into the weighted 0-100 compatibility
// score.
func TotalScore(b ScoreBreakdown, cfg config.ScoringConfig) float64 {
	return (b.Distance*cfg.DistanceWeight +
		b.Experience*cfg.ExperienceWeight +
		b.Availability*cfg.AvailabilityWeight +
		b.Efficiency*cfg.EfficiencyWeight +
		b.Rating*cfg.RatingWeight) / 100
}
