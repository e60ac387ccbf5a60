package calendar

import (
	"time"

	"rideconnect/internal/types"
)

// Optimization scores the dead time between two consecutive assigned rides.
type Optimization struct {
	ID       types.ID
	DriverID types.ID

	RideBeforeID types.ID
	RideAfterID  types.ID

	WaitingMin int
	DistanceKm float64
	BufferMin  int

	EfficiencyScore     int
	Suggestions         []string
	NeedsReoptimization bool

	CreatedAt time.Time
}

// EfficiencyScore rates a gap between rides. 100 is a seamless handover;
// long waits and long repositioning legs pull it down, a comfortable buffer
// nudges it up.
func EfficiencyScore(waitingMin int, distanceKm float64, bufferMin int) int {
	score := 100

	switch {
	case waitingMin > 60:
		score -= 40
	case waitingMin > 30:
		score -= 20
	case waitingMin > 15:
		score -= 10
	}

	switch {
	case distanceKm > 20:
		score -= 30
	case distanceKm > 10:
		score -= 15
	}

	if bufferMin >= 10 {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// GapSuggestions lists concrete improvements for a gap; an empty list means
// the handover needs no attention.
func GapSuggestions(waitingMin int, distanceKm float64, bufferMin int) []string {
	var out []string
	if waitingMin > 30 {
		out = append(out, "long wait between rides; consider accepting a short ride in the gap")
	}
	if distanceKm > 15 {
		out = append(out, "long repositioning distance; prefer rides ending near the next pickup")
	}
	if bufferMin < 10 {
		out = append(out, "tight buffer before next pickup; allow more transition time")
	}
	return out
}

// NewOptimization builds the record for two consecutive rides.
func NewOptimization(driverID, beforeID, afterID types.ID, waitingMin int, distanceKm float64, bufferMin int, now time.Time) *Optimization {
	suggestions := GapSuggestions(waitingMin, distanceKm, bufferMin)
	return &Optimization{
		DriverID:            driverID,
		RideBeforeID:        beforeID,
		RideAfterID:         afterID,
		WaitingMin:          waitingMin,
		DistanceKm:          distanceKm,
		BufferMin:           bufferMin,
		EfficiencyScore:     EfficiencyScore(waitingMin, distanceKm, bufferMin),
		Suggestions:         suggestions,
		NeedsReoptimization: len(suggestions) > 0,
		CreatedAt:           now,
	}
}
