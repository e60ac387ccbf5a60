// README: Ride request aggregate and status definitions.
package ride

import (
	"time"

	"rideconnect/internal/modules/pricing"
	"rideconnect/internal/types"
)

type Status string

const (
	StatusNone           Status = "none"
	StatusPending        Status = "pending"
	StatusDriverAssigned Status = "driver_assigned"
	StatusConfirmed      Status = "confirmed"
	StatusInProgress     Status = "in_progress"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusNoShow         Status = "no_show"
	StatusUnmatched      Status = "unmatched"
)

// Request is a scheduled pickup/dropoff awaiting (or holding) a driver
// assignment.
type Request struct {
	ID      types.ID
	RiderID types.ID

	BookingType pricing.BookingType
	Purpose     string
	Priority    pricing.Priority

	PickupAddress  string
	Pickup         types.Point
	DropoffAddress string
	Dropoff        types.Point

	PickupAt             time.Time
	PickupWindowMin      int
	EstimatedDurationMin int
	EstimatedDistanceKm  float64

	SpecialRequirements string
	WheelchairRequired  bool
	AssistanceRequired  []string

	// Round-trip fields.
	ReturnPickupAt     *time.Time
	FlexibleReturn     bool
	EarliestReturnAt   *time.Time
	LatestReturnAt     *time.Time
	WaitingDurationMin int

	EstimatedFare types.Money
	// Stripe PaymentIntent id of the fare hold; empty when payments are off.
	PaymentIntentID string

	Status        Status
	StatusVersion int

	DriverID  *types.ID
	VehicleID *types.ID

	CancelledAt        *time.Time
	CancellationReason string
	CancellationFee    *types.Money

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event is one audit row in the ride state history.
type Event struct {
	ID         int64
	RideID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the ride request state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:        {StatusDriverAssigned, StatusCancelled, StatusNoShow, StatusUnmatched},
	StatusDriverAssigned: {StatusConfirmed, StatusCancelled, StatusPending},
	StatusConfirmed:      {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress:     {StatusCompleted},
	StatusUnmatched:      {StatusPending, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// End returns the estimated dropoff time.
func (r *Request) End() time.Time {
	return r.PickupAt.Add(time.Duration(r.EstimatedDurationMin) * time.Minute)
}

// RecurrenceType enumerates how a recurring template repeats.
type RecurrenceType string

const (
	RecurDaily    RecurrenceType = "daily"
	RecurWeekly   RecurrenceType = "weekly"
	RecurBiweekly RecurrenceType = "biweekly"
	RecurMonthly  RecurrenceType = "monthly"
	RecurCustom   RecurrenceType = "custom"
)

// RecurringTemplate expands into individual ride requests. CustomDays holds
// weekdays (0=Monday) for weekly/biweekly/custom patterns and days of the
// month for monthly ones.
type RecurringTemplate struct {
	ID      types.ID
	RiderID types.ID

	PickupAddress  string
	DropoffAddress string
	PickupTimeMin  int // minutes from midnight, local

	Recurrence     RecurrenceType
	CustomDays     []int
	StartDate      time.Time
	ExclusionDates []time.Time

	RoundTrip          bool
	Purpose            string
	Priority           pricing.Priority
	WheelchairRequired bool
	AssistanceRequired []string
	WaitingDurationMin int

	LastGeneratedUntil *time.Time
}

// MatchesDate reports whether the template recurs on the given date.
func (t *RecurringTemplate) MatchesDate(date time.Time) bool {
	switch t.Recurrence {
	case RecurDaily:
		return true
	case RecurWeekly, RecurCustom:
		return containsInt(t.CustomDays, weekdayMondayZero(date))
	case RecurBiweekly:
		weeks := int(date.Sub(t.StartDate).Hours()) / (24 * 7)
		return weeks%2 == 0 && containsInt(t.CustomDays, weekdayMondayZero(date))
	case RecurMonthly:
		return containsInt(t.CustomDays, date.Day())
	}
	return false
}

// Excluded reports whether the date was explicitly skipped by the rider.
func (t *RecurringTemplate) Excluded(date time.Time) bool {
	y, m, d := date.Date()
	for _, ex := range t.ExclusionDates {
		ey, em, ed := ex.Date()
		if y == ey && m == em && d == ed {
			return true
		}
	}
	return false
}

func weekdayMondayZero(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
