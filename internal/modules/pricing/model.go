// README: Fare rate definitions and request/result shapes.
package pricing

import "rideconnect/internal/types"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// PriorityOf parses a stored priority, defaulting to normal.
func PriorityOf(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityHigh, PriorityUrgent:
		return Priority(s)
	}
	return PriorityNormal
}

type BookingType string

const (
	BookingSingle    BookingType = "single"
	BookingRoundTrip BookingType = "round_trip"
	BookingRecurring BookingType = "recurring"
)

// BookingTypeOf parses a stored booking type, defaulting to single.
func BookingTypeOf(s string) BookingType {
	switch BookingType(s) {
	case BookingRoundTrip, BookingRecurring:
		return BookingType(s)
	}
	return BookingSingle
}

// Config holds every rate used by the fare arithmetic, in cents. Passed
// explicitly so scenario tests can run alternative rate sets.
type Config struct {
	BaseFare            int64
	PerKm               int64
	PerMin              int64
	PreBookingFee       int64
	WheelchairSurcharge int64

	RoundTripDiscount float64

	FreeWaitingMin      int
	WaitingRatePerHour  int64
	ExtendedWaitingRate int64

	PriorityMultipliers map[Priority]float64

	RiderCancelFlatFee  int64
	RiderCancelLatePct  float64
	DriverCancelPenalty int64
	RiderCompensation   int64

	PlatformCommission float64

	Currency string
}

func DefaultConfig() Config {
	return Config{
		BaseFare:            500,
		PerKm:               150,
		PerMin:              30,
		PreBookingFee:       200,
		WheelchairSurcharge: 300,
		RoundTripDiscount:   0.10,
		FreeWaitingMin:      15,
		WaitingRatePerHour:  1000,
		ExtendedWaitingRate: 1500,
		PriorityMultipliers: map[Priority]float64{
			PriorityLow:    1.0,
			PriorityNormal: 1.0,
			PriorityHigh:   1.15,
			PriorityUrgent: 1.30,
		},
		RiderCancelFlatFee:  500,
		RiderCancelLatePct:  0.50,
		DriverCancelPenalty: 1000,
		RiderCompensation:   500,
		PlatformCommission:  0.20,
		Currency:            "EUR",
	}
}

// FareRequest describes a ride for fare estimation.
type FareRequest struct {
	DistanceKm         float64
	DurationMin        int
	BookingType        BookingType
	Priority           Priority
	WheelchairRequired bool
	WaitingDurationMin int
}

// Earnings is the driver/platform split of a gross fare.
type Earnings struct {
	Driver      types.Money
	PlatformFee types.Money
}

type DemandLevel string

const (
	DemandLow      DemandLevel = "low"
	DemandNormal   DemandLevel = "normal"
	DemandHigh     DemandLevel = "high"
	DemandVeryHigh DemandLevel = "very_high"
)

// FareRange is the display envelope between low-demand and high-demand
// pricing around an estimate.
type FareRange struct {
	Min       types.Money
	Max       types.Money
	Estimated types.Money
}
