// README: Driver availability calendar: day entries, breaks, schedule gaps.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"rideconnect/internal/types"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusBreak     Status = "break"
	StatusOffline   Status = "offline"
)

var (
	ErrInvalidWindow = errors.New("calendar: start must precede end")
	ErrBreakOutside  = errors.New("calendar: break outside availability window")
	ErrEntryFull     = errors.New("calendar: entry is fully booked")
	ErrNotFound      = errors.New("calendar: entry not found")
)

// Times within a day are minutes from local midnight, so 420 is 07:00.
type BreakSlot struct {
	StartMin int `json:"start_min"`
	EndMin   int `json:"end_min"`
}

// Entry is one driver-day of declared availability.
type Entry struct {
	ID       types.ID
	DriverID types.ID
	Date     time.Time // midnight, local

	StartMin int
	EndMin   int
	Status   Status
	Breaks   []BreakSlot

	MaxRides        int
	CurrentBookings int

	PreferredZones []string
	AvoidZones     []string

	// Derived metrics, recomputed on every booking change.
	UtilizationPct    float64
	EstimatedEarnings types.Money

	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate enforces the window and break invariants.
func (e *Entry) Validate() error {
	if e.StartMin >= e.EndMin {
		return ErrInvalidWindow
	}
	for _, b := range e.Breaks {
		if b.StartMin >= b.EndMin {
			return ErrInvalidWindow
		}
		if b.StartMin < e.StartMin || b.EndMin > e.EndMin {
			return ErrBreakOutside
		}
	}
	return nil
}

// Covers reports whether [startMin, endMin) fits fully inside the window.
func (e *Entry) Covers(startMin, endMin int) bool {
	return startMin >= e.StartMin && endMin <= e.EndMin
}

// Overlaps reports whether [startMin, endMin) touches the window at all.
func (e *Entry) Overlaps(startMin, endMin int) bool {
	return startMin < e.EndMin && endMin > e.StartMin
}

// InBreak reports whether [startMin, endMin) collides with any break.
func (e *Entry) InBreak(startMin, endMin int) bool {
	for _, b := range e.Breaks {
		if startMin < b.EndMin && endMin > b.StartMin {
			return true
		}
	}
	return false
}

// Full reports whether the entry has reached its ride cap.
func (e *Entry) Full() bool {
	return e.MaxRides > 0 && e.CurrentBookings >= e.MaxRides
}

// WorkingMinutes is the window length net of breaks.
func (e *Entry) WorkingMinutes() int {
	mins := e.EndMin - e.StartMin
	for _, b := range e.Breaks {
		mins -= b.EndMin - b.StartMin
	}
	if mins < 0 {
		mins = 0
	}
	return mins
}

type GapType string

const (
	GapStartOfDay   GapType = "start_of_day"
	GapBetweenRides GapType = "between_rides"
	GapEndOfDay     GapType = "end_of_day"
)

// Gap is an idle stretch of at least the minimum useful length inside a
// driver's day.
type Gap struct {
	Type        GapType
	StartMin    int
	EndMin      int
	DurationMin int
	// Adjacent bookings, when the gap borders one.
	AfterRideID  *types.ID
	BeforeRideID *types.ID
}

// ScheduledRide is the slice of a ride request the schedule view needs.
type ScheduledRide struct {
	RideID      types.ID
	PickupMin   int
	DropoffMin  int
	PickupAddr  string
	DropoffAddr string
	Status      string
}

// DaySchedule is one day of a driver's schedule with its gaps.
type DaySchedule struct {
	Date        time.Time
	Entry       *Entry
	Rides       []ScheduledRide
	Gaps        []Gap
	Utilization float64
}

// MinuteOfDay converts a timestamp to minutes from its local midnight.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// FormatMin renders minutes from midnight as HH:MM.
func FormatMin(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseMin parses HH:MM into minutes from midnight.
func ParseMin(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("calendar: bad time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("calendar: bad time %q", s)
	}
	return h*60 + m, nil
}
