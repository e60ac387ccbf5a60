// README: Calendar service: availability upserts, booking gates, schedule
// and gap analytics, waiting-time optimization.
package calendar

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"rideconnect/internal/config"
	"rideconnect/internal/geo"
	"rideconnect/internal/modules/pricing"
	"rideconnect/internal/modules/ride"
	"rideconnect/internal/types"
)

// EntryStore is the persistence surface the service needs.
type EntryStore interface {
	Get(ctx context.Context, driverID types.ID, date time.Time) (*Entry, error)
	Upsert(ctx context.Context, e *Entry) error
	BookSlot(ctx context.Context, driverID types.ID, date time.Time) error
	ReleaseSlot(ctx context.Context, driverID types.ID, date time.Time) error
	UpdateMetrics(ctx context.Context, driverID types.ID, date time.Time, utilizationPct float64, earnings types.Money) error
	ListRange(ctx context.Context, driverID types.ID, from, to time.Time) ([]*Entry, error)
	SaveOptimization(ctx context.Context, o *Optimization) error
}

// RideReader exposes the assigned-ride queries the schedule views need.
type RideReader interface {
	ListAssignedByDriverDay(ctx context.Context, driverID types.ID, dayStart, dayEnd time.Time) ([]*ride.Request, error)
}

type Service struct {
	entries EntryStore
	rides   RideReader
	pricing *pricing.Service
	cfg     config.CalendarConfig
	log     *slog.Logger
	now     func() time.Time
}

func NewService(entries EntryStore, rides RideReader, pricingSvc *pricing.Service, cfg config.CalendarConfig, log *slog.Logger) *Service {
	return &Service{
		entries: entries,
		rides:   rides,
		pricing: pricingSvc,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// UpdatePatch carries the fields of an availability upsert; nil pointers
// leave the current value alone.
type UpdatePatch struct {
	StartMin *int
	EndMin   *int
	Status   *Status
	Breaks   []BreakSlot
	MaxRides *int

	PreferredZones []string
	AvoidZones     []string
	Notes          *string
}

// UpdateAvailability finds or creates the driver-day entry, applies the
// patch, and recomputes the derived metrics.
func (s *Service) UpdateAvailability(ctx context.Context, driverID types.ID, date time.Time, patch UpdatePatch) (*Entry, error) {
	e, err := s.entries.Get(ctx, driverID, date)
	switch {
	case err == nil:
	case err == ErrNotFound:
		e = &Entry{
			ID:       types.ID(newID()),
			DriverID: driverID,
			Date:     date,
			StartMin: s.cfg.DefaultStartMin,
			EndMin:   s.cfg.DefaultEndMin,
			Status:   StatusAvailable,
			MaxRides: s.cfg.DefaultMaxRides,
		}
	default:
		return nil, err
	}

	if patch.StartMin != nil {
		e.StartMin = *patch.StartMin
	}
	if patch.EndMin != nil {
		e.EndMin = *patch.EndMin
	}
	if patch.Status != nil {
		e.Status = *patch.Status
	}
	if patch.Breaks != nil {
		e.Breaks = patch.Breaks
	}
	if patch.MaxRides != nil {
		e.MaxRides = *patch.MaxRides
	}
	if patch.PreferredZones != nil {
		e.PreferredZones = patch.PreferredZones
	}
	if patch.AvoidZones != nil {
		e.AvoidZones = patch.AvoidZones
	}
	if patch.Notes != nil {
		e.Notes = *patch.Notes
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}

	rides, err := s.assignedRides(ctx, driverID, date)
	if err != nil {
		return nil, err
	}
	e.UtilizationPct = s.utilization(e, rides)
	e.EstimatedEarnings = s.earnings(rides)

	if err := s.entries.Upsert(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info("availability updated",
		"driver_id", driverID, "date", date.Format("2006-01-02"),
		"window", FormatMin(e.StartMin)+"-"+FormatMin(e.EndMin), "status", e.Status)
	return e, nil
}

// Entry returns the driver-day entry, ErrNotFound when none is set.
func (s *Service) Entry(ctx context.Context, driverID types.ID, date time.Time) (*Entry, error) {
	return s.entries.Get(ctx, driverID, date)
}

// Availability is the outcome of a booking gate check.
type Availability struct {
	Available bool
	Reason    string
}

// CheckAvailability runs the booking gates in order and reports the first
// failure. The transition buffer pads the booking-conflict comparison only;
// a ride ending exactly at the window end still fits the declared hours.
func (s *Service) CheckAvailability(ctx context.Context, driverID types.ID, pickupAt time.Time, durationMin int) (Availability, error) {
	e, err := s.entries.Get(ctx, driverID, pickupAt)
	if err == ErrNotFound {
		return Availability{Reason: "no availability set for this date"}, nil
	}
	if err != nil {
		return Availability{}, err
	}

	if e.Status != StatusAvailable {
		return Availability{Reason: fmt.Sprintf("driver is %s on this date", e.Status)}, nil
	}

	startMin := MinuteOfDay(pickupAt)
	endMin := startMin + durationMin
	if !e.Covers(startMin, endMin) {
		return Availability{Reason: fmt.Sprintf("requested time is outside available hours (%s-%s)",
			FormatMin(e.StartMin), FormatMin(e.EndMin))}, nil
	}

	rides, err := s.assignedRides(ctx, driverID, pickupAt)
	if err != nil {
		return Availability{}, err
	}
	for _, r := range rides {
		rStart := MinuteOfDay(r.PickupAt)
		rEnd := rStart + r.EstimatedDurationMin
		if startMin < rEnd+s.cfg.RideBufferMin && endMin > rStart-s.cfg.RideBufferMin {
			return Availability{Reason: fmt.Sprintf("driver has a conflicting ride at %s", FormatMin(rStart))}, nil
		}
	}

	if e.InBreak(startMin, endMin) {
		return Availability{Reason: "requested time conflicts with a scheduled break"}, nil
	}

	if e.Full() {
		return Availability{Reason: "driver has reached the maximum rides for this date"}, nil
	}

	return Availability{Available: true}, nil
}

// BookSlot consumes one booking on the driver-day and refreshes metrics.
func (s *Service) BookSlot(ctx context.Context, driverID types.ID, date time.Time) error {
	if err := s.entries.BookSlot(ctx, driverID, date); err != nil {
		return err
	}
	return s.refreshMetrics(ctx, driverID, date)
}

// ReleaseSlot frees one booking on the driver-day and refreshes metrics.
func (s *Service) ReleaseSlot(ctx context.Context, driverID types.ID, date time.Time) error {
	if err := s.entries.ReleaseSlot(ctx, driverID, date); err != nil {
		return err
	}
	return s.refreshMetrics(ctx, driverID, date)
}

// Schedule assembles the per-day view with gaps for [from, to].
func (s *Service) Schedule(ctx context.Context, driverID types.ID, from, to time.Time) ([]DaySchedule, error) {
	entries, err := s.entries.ListRange(ctx, driverID, from, to)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]*Entry, len(entries))
	for _, e := range entries {
		byDate[e.Date.Format("2006-01-02")] = e
	}

	var out []DaySchedule
	for day := dateOnly(from); !day.After(dateOnly(to)); day = day.AddDate(0, 0, 1) {
		rides, err := s.assignedRides(ctx, driverID, day)
		if err != nil {
			return nil, err
		}
		entry := byDate[day.Format("2006-01-02")]

		ds := DaySchedule{Date: day, Entry: entry}
		for _, r := range rides {
			pickup := MinuteOfDay(r.PickupAt)
			ds.Rides = append(ds.Rides, ScheduledRide{
				RideID:      r.ID,
				PickupMin:   pickup,
				DropoffMin:  pickup + r.EstimatedDurationMin,
				PickupAddr:  r.PickupAddress,
				DropoffAddr: r.DropoffAddress,
				Status:      string(r.Status),
			})
		}
		ds.Gaps = s.findGaps(entry, ds.Rides)
		if entry != nil {
			ds.Utilization = s.utilization(entry, rides)
		}
		out = append(out, ds)
	}
	return out, nil
}

// findGaps locates idle stretches of at least the minimum useful length.
func (s *Service) findGaps(e *Entry, rides []ScheduledRide) []Gap {
	if e == nil || e.Status != StatusAvailable {
		return nil
	}
	sorted := make([]ScheduledRide, len(rides))
	copy(sorted, rides)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PickupMin < sorted[j].PickupMin })

	var gaps []Gap
	add := func(g Gap) {
		g.DurationMin = g.EndMin - g.StartMin
		if g.DurationMin >= s.cfg.MinGapMin {
			gaps = append(gaps, g)
		}
	}

	if len(sorted) == 0 {
		add(Gap{Type: GapStartOfDay, StartMin: e.StartMin, EndMin: e.EndMin})
		return gaps
	}

	first := sorted[0]
	add(Gap{Type: GapStartOfDay, StartMin: e.StartMin, EndMin: first.PickupMin, BeforeRideID: idRef(first.RideID)})

	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1], sorted[i]
		add(Gap{
			Type:         GapBetweenRides,
			StartMin:     prev.DropoffMin,
			EndMin:       next.PickupMin,
			AfterRideID:  idRef(prev.RideID),
			BeforeRideID: idRef(next.RideID),
		})
	}

	last := sorted[len(sorted)-1]
	add(Gap{Type: GapEndOfDay, StartMin: last.DropoffMin, EndMin: e.EndMin, AfterRideID: idRef(last.RideID)})
	return gaps
}

// SuggestImprovements lists schedule advice for one driver-day.
func (s *Service) SuggestImprovements(ctx context.Context, driverID types.ID, date time.Time) ([]string, error) {
	e, err := s.entries.Get(ctx, driverID, date)
	if err == ErrNotFound {
		return []string{"no availability set; add a calendar entry to receive offers"}, nil
	}
	if err != nil {
		return nil, err
	}

	rides, err := s.assignedRides(ctx, driverID, date)
	if err != nil {
		return nil, err
	}

	var out []string
	if util := s.utilization(e, rides); util < 50 {
		out = append(out, fmt.Sprintf("utilization is %.0f%%; consider widening preferred zones or hours", util))
	}

	var scheduled []ScheduledRide
	for _, r := range rides {
		pickup := MinuteOfDay(r.PickupAt)
		scheduled = append(scheduled, ScheduledRide{RideID: r.ID, PickupMin: pickup, DropoffMin: pickup + r.EstimatedDurationMin})
	}
	for _, g := range s.findGaps(e, scheduled) {
		if g.Type == GapBetweenRides && g.DurationMin > 90 {
			out = append(out, fmt.Sprintf("%d-minute idle gap at %s; a short ride would fit", g.DurationMin, FormatMin(g.StartMin)))
		}
	}

	if e.WorkingMinutes() < 6*60 {
		out = append(out, "working day is under 6 hours; extending hours increases offer volume")
	}
	return out, nil
}

// AnalyzeGap scores the handover between two consecutive assigned rides and
// persists the optimization record.
func (s *Service) AnalyzeGap(ctx context.Context, before, after *ride.Request) (*Optimization, error) {
	if before.DriverID == nil || after.DriverID == nil || *before.DriverID != *after.DriverID {
		return nil, fmt.Errorf("calendar: rides are not a consecutive pair for one driver")
	}

	waiting := int(after.PickupAt.Sub(before.End()).Minutes())
	if waiting < 0 {
		waiting = 0
	}
	route := geo.EstimateRoute(before.Dropoff, after.Pickup)
	buffer := waiting - route.DurationMin
	if buffer < 0 {
		buffer = 0
	}

	o := NewOptimization(*before.DriverID, before.ID, after.ID, waiting, route.DistanceKm, buffer, s.now())
	o.ID = types.ID(newID())
	if err := s.entries.SaveOptimization(ctx, o); err != nil {
		return nil, err
	}
	if o.NeedsReoptimization {
		s.log.Info("gap needs attention",
			"driver_id", o.DriverID, "score", o.EfficiencyScore, "waiting_min", o.WaitingMin)
	}
	return o, nil
}

func (s *Service) refreshMetrics(ctx context.Context, driverID types.ID, date time.Time) error {
	e, err := s.entries.Get(ctx, driverID, date)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	rides, err := s.assignedRides(ctx, driverID, date)
	if err != nil {
		return err
	}
	return s.entries.UpdateMetrics(ctx, driverID, date, s.utilization(e, rides), s.earnings(rides))
}

func (s *Service) assignedRides(ctx context.Context, driverID types.ID, date time.Time) ([]*ride.Request, error) {
	day := dateOnly(date)
	return s.rides.ListAssignedByDriverDay(ctx, driverID, day, day.AddDate(0, 0, 1))
}

// utilization is busy minutes (ride time plus transition buffer) over
// working minutes, as a percentage capped at 100.
func (s *Service) utilization(e *Entry, rides []*ride.Request) float64 {
	working := e.WorkingMinutes()
	if working == 0 {
		return 0
	}
	busy := 0
	for _, r := range rides {
		busy += r.EstimatedDurationMin + s.cfg.RideBufferMin
	}
	pct := float64(busy) / float64(working) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

func (s *Service) earnings(rides []*ride.Request) types.Money {
	total := types.EUR(0)
	for _, r := range rides {
		total = total.Add(s.pricing.DriverEarnings(r.EstimatedFare).Driver)
	}
	return total
}

func idRef(id types.ID) *types.ID {
	return &id
}

func newID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
