// README: Driver and vehicle records as seen by the matching core.
package driver

import (
	"time"

	"rideconnect/internal/types"
)

// Driver is the profile slice the matching engine scores against. Documents,
// training content, and the onboarding workflow live outside this core.
type Driver struct {
	ID                types.ID
	Name              string
	Rating            float64
	TotalRides        int
	WheelchairRides   int
	Active            bool
	ApplicationStatus string
	TrainingCompleted bool
	AssessmentPassed  bool
	// Assistance types the driver is trained for (wheelchair, blind, deaf, ...).
	AccessibilityTraining []string
	// Last known position; nil until the first location update.
	Location  *types.Point
	UpdatedAt time.Time
}

type Vehicle struct {
	ID           types.ID
	DriverID     types.ID
	Make         string
	Model        string
	LicensePlate string
	Active       bool
	Accessible   bool
}

// Eligible reports whether the driver may receive offers at all.
func (d Driver) Eligible() bool {
	return d.Active && d.ApplicationStatus == "approved" && d.TrainingCompleted && d.AssessmentPassed
}

// TrainedFor reports whether the driver's accessibility training covers every
// required assistance type.
func (d Driver) TrainedFor(required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]bool, len(d.AccessibilityTraining))
	for _, t := range d.AccessibilityTraining {
		have[t] = true
	}
	for _, r := range required {
		if !have[r] {
			return false
		}
	}
	return true
}
