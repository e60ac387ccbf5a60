// README: Booking orchestration: create, cancel, modify, recurring
// generation. Ties geocoding, pricing, payments, calendar, and matching
// together around the ride store.
package booking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rideconnect/internal/config"
	"rideconnect/internal/dispatch"
	"rideconnect/internal/geo"
	"rideconnect/internal/modules/pricing"
	"rideconnect/internal/modules/ride"
	"rideconnect/internal/payments"
	"rideconnect/internal/types"
)

var (
	ErrValidation         = errors.New("booking: invalid request")
	ErrOutsideServiceArea = errors.New("booking: address outside the service area")
	ErrConflict           = errors.New("booking: ride state conflict")
	ErrNotModifiable      = errors.New("booking: ride can no longer be modified")
)

// RideStore is the persistence surface of the ride module.
type RideStore interface {
	Create(ctx context.Context, r *ride.Request) error
	Get(ctx context.Context, id types.ID) (*ride.Request, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to ride.Status, version int) (bool, error)
	Release(ctx context.Context, id types.ID) (bool, error)
	Cancel(ctx context.Context, id types.ID, from ride.Status, reason string, fee types.Money) (bool, error)
	UpdateDetails(ctx context.Context, r *ride.Request) error
	AppendEvent(ctx context.Context, e *ride.Event) error
}

// TemplateStore persists recurring templates.
type TemplateStore interface {
	Get(ctx context.Context, id types.ID) (*ride.RecurringTemplate, error)
	SetGeneratedUntil(ctx context.Context, id types.ID, until time.Time) error
}

// Matcher runs the offer engine for a pending ride.
type Matcher interface {
	Match(ctx context.Context, rideID types.ID) error
}

// Geocoder resolves free-text addresses.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Location, error)
}

// Router produces the distance/duration estimate for a ride.
type Router interface {
	DrivingRoute(ctx context.Context, origin, dest types.Point) geo.Route
}

// CalendarBooker releases driver-day slots on cancellation.
type CalendarBooker interface {
	ReleaseSlot(ctx context.Context, driverID types.ID, date time.Time) error
}

type Service struct {
	rides     RideStore
	templates TemplateStore
	matcher   Matcher
	geocoder  Geocoder
	router    Router
	cal       CalendarBooker
	pay       payments.Gateway
	pricing   *pricing.Service
	notifier  dispatch.Notifier
	cfg       config.BookingConfig
	area      geo.Bounds
	log       *slog.Logger
	now       func() time.Time
}

func NewService(rides RideStore, templates TemplateStore, matcher Matcher, geocoder Geocoder,
	router Router, cal CalendarBooker, pay payments.Gateway, pricingSvc *pricing.Service,
	notifier dispatch.Notifier, cfg config.BookingConfig, area geo.Bounds, log *slog.Logger) *Service {
	return &Service{
		rides:     rides,
		templates: templates,
		matcher:   matcher,
		geocoder:  geocoder,
		router:    router,
		cal:       cal,
		pay:       pay,
		pricing:   pricingSvc,
		notifier:  notifier,
		cfg:       cfg,
		area:      area,
		log:       log,
		now:       time.Now,
	}
}

// CreateRequest is the rider-facing booking input.
type CreateRequest struct {
	RiderID types.ID

	PickupAddress  string
	DropoffAddress string
	PickupAt       time.Time

	BookingType pricing.BookingType
	Priority    pricing.Priority
	Purpose     string

	WheelchairRequired  bool
	AssistanceRequired  []string
	SpecialRequirements string
	PickupWindowMin     int

	ReturnPickupAt     *time.Time
	FlexibleReturn     bool
	WaitingDurationMin int

	// Stripe customer reference; empty skips the fare hold.
	RiderPaymentRef string
}

// Create validates, prices, persists, and immediately matches a booking.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*ride.Request, error) {
	now := s.now()
	if req.RiderID == "" || req.PickupAddress == "" || req.DropoffAddress == "" {
		return nil, fmt.Errorf("%w: rider and both addresses are required", ErrValidation)
	}
	lead := req.PickupAt.Sub(now)
	if lead < s.cfg.MinLeadTime {
		return nil, fmt.Errorf("%w: pickup must be at least %s ahead", ErrValidation, s.cfg.MinLeadTime)
	}
	if lead > s.cfg.MaxLeadTime {
		return nil, fmt.Errorf("%w: pickup must be within %s", ErrValidation, s.cfg.MaxLeadTime)
	}
	if req.BookingType == pricing.BookingRoundTrip && req.ReturnPickupAt != nil &&
		!req.ReturnPickupAt.After(req.PickupAt) {
		return nil, fmt.Errorf("%w: return pickup must follow the outbound pickup", ErrValidation)
	}

	pickup, err := s.geocoder.Geocode(ctx, req.PickupAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: pickup address not resolvable", ErrValidation)
	}
	dropoff, err := s.geocoder.Geocode(ctx, req.DropoffAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: dropoff address not resolvable", ErrValidation)
	}
	if !s.area.Contains(pickup.Point) || !s.area.Contains(dropoff.Point) {
		return nil, ErrOutsideServiceArea
	}

	route := s.router.DrivingRoute(ctx, pickup.Point, dropoff.Point)

	priority := pricing.PriorityOf(string(req.Priority))
	fare := s.pricing.PreBookedFare(pricing.FareRequest{
		DistanceKm:         route.Summary.DistanceKm,
		DurationMin:        route.Summary.DurationMin,
		BookingType:        pricing.BookingTypeOf(string(req.BookingType)),
		Priority:           priority,
		WheelchairRequired: req.WheelchairRequired,
		WaitingDurationMin: req.WaitingDurationMin,
	})

	r := &ride.Request{
		ID:                   types.ID(newID()),
		RiderID:              req.RiderID,
		BookingType:          pricing.BookingTypeOf(string(req.BookingType)),
		Purpose:              req.Purpose,
		Priority:             priority,
		PickupAddress:        pickup.DisplayName,
		Pickup:               pickup.Point,
		DropoffAddress:       dropoff.DisplayName,
		Dropoff:              dropoff.Point,
		PickupAt:             req.PickupAt,
		PickupWindowMin:      req.PickupWindowMin,
		EstimatedDurationMin: route.Summary.DurationMin,
		EstimatedDistanceKm:  route.Summary.DistanceKm,
		SpecialRequirements:  req.SpecialRequirements,
		WheelchairRequired:   req.WheelchairRequired,
		AssistanceRequired:   req.AssistanceRequired,
		ReturnPickupAt:       req.ReturnPickupAt,
		FlexibleReturn:       req.FlexibleReturn,
		WaitingDurationMin:   req.WaitingDurationMin,
		EstimatedFare:        fare,
		Status:               ride.StatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	intentID, err := s.pay.HoldFare(ctx, req.RiderPaymentRef, fare, r.ID)
	if err != nil {
		return nil, fmt.Errorf("booking: fare hold failed: %w", err)
	}
	r.PaymentIntentID = intentID

	if err := s.rides.Create(ctx, r); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, r.ID, ride.StatusNone, ride.StatusPending, "rider", &req.RiderID)
	s.log.Info("booking created",
		"ride_id", r.ID, "rider_id", r.RiderID, "pickup_at", r.PickupAt,
		"fare_cents", fare.Amount, "wheelchair", r.WheelchairRequired)

	// Matching is best-effort at creation; the ride stays pending for a
	// later pass if the engine errors.
	if err := s.matcher.Match(ctx, r.ID); err != nil {
		s.log.Warn("initial match failed", "ride_id", r.ID, "err", err)
	}
	return s.rides.Get(ctx, r.ID)
}

// Cancel settles a cancellation by either side, applying the fee policy.
func (s *Service) Cancel(ctx context.Context, rideID types.ID, cancelledBy string, reason string) (*ride.Request, error) {
	r, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.CanTransition(r.Status, ride.StatusCancelled) && cancelledBy != "driver" {
		return nil, fmt.Errorf("%w: cannot cancel a %s ride", ErrConflict, r.Status)
	}

	if cancelledBy == "driver" {
		return s.driverCancel(ctx, r, reason)
	}
	return s.riderCancel(ctx, r, reason)
}

// riderCancel applies the time-banded fee and finalizes the ride.
func (s *Service) riderCancel(ctx context.Context, r *ride.Request, reason string) (*ride.Request, error) {
	hoursUntil := r.PickupAt.Sub(s.now()).Hours()
	fee := s.pricing.CancellationFee(r.EstimatedFare, hoursUntil, "rider")

	ok, err := s.rides.Cancel(ctx, r.ID, r.Status, reason, fee)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ride changed state during cancellation", ErrConflict)
	}
	s.appendEvent(ctx, r.ID, r.Status, ride.StatusCancelled, "rider", &r.RiderID)

	if r.PaymentIntentID != "" {
		if fee.IsZero() {
			err = s.pay.ReleaseHold(ctx, r.PaymentIntentID)
		} else {
			err = s.pay.CaptureFare(ctx, r.PaymentIntentID, fee)
		}
		if err != nil {
			s.log.Error("cancellation payment settlement failed",
				"ride_id", r.ID, "intent_id", r.PaymentIntentID, "fee_cents", fee.Amount, "err", err)
		}
	}

	if r.DriverID != nil {
		if err := s.cal.ReleaseSlot(ctx, *r.DriverID, r.PickupAt); err != nil {
			s.log.Warn("release slot failed", "ride_id", r.ID, "driver_id", *r.DriverID, "err", err)
		}
		ev := dispatch.Event{Type: "ride_cancelled", RideID: r.ID, At: s.now()}
		if err := s.notifier.NotifyDriver(ctx, *r.DriverID, ev); err != nil {
			s.log.Warn("cancel notification failed", "ride_id", r.ID, "err", err)
		}
	}

	s.log.Info("ride cancelled", "ride_id", r.ID, "by", "rider", "fee_cents", fee.Amount)
	return s.rides.Get(ctx, r.ID)
}

// driverCancel releases the assignment back into matching, applies the
// driver penalty, and compensates the rider.
func (s *Service) driverCancel(ctx context.Context, r *ride.Request, reason string) (*ride.Request, error) {
	if r.DriverID == nil {
		return nil, fmt.Errorf("%w: ride has no assigned driver", ErrConflict)
	}
	driverID := *r.DriverID

	ok, err := s.rides.Release(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ride is not in a releasable state", ErrConflict)
	}
	s.appendEvent(ctx, r.ID, r.Status, ride.StatusPending, "driver", &driverID)

	if err := s.cal.ReleaseSlot(ctx, driverID, r.PickupAt); err != nil {
		s.log.Warn("release slot failed", "ride_id", r.ID, "driver_id", driverID, "err", err)
	}

	penalty := s.pricing.CancellationFee(r.EstimatedFare, r.PickupAt.Sub(s.now()).Hours(), "driver")
	compensation := s.pricing.RiderCompensation()
	s.log.Info("driver cancelled ride",
		"ride_id", r.ID, "driver_id", driverID, "reason", reason,
		"penalty_cents", penalty.Amount, "compensation_cents", compensation.Amount)

	ev := dispatch.Event{
		Type:   "driver_cancelled",
		RideID: r.ID,
		Payload: map[string]any{
			"compensation_cents": compensation.Amount,
			"rematching":         true,
		},
		At: s.now(),
	}
	if err := s.notifier.NotifyRider(ctx, r.RiderID, ev); err != nil {
		s.log.Warn("driver-cancel notification failed", "ride_id", r.ID, "err", err)
	}

	if err := s.matcher.Match(ctx, r.ID); err != nil {
		s.log.Warn("re-match after driver cancel failed", "ride_id", r.ID, "err", err)
	}
	return s.rides.Get(ctx, r.ID)
}

// ModifyRequest patches a booking; nil pointers leave fields alone.
type ModifyRequest struct {
	PickupAt            *time.Time
	PickupAddress       *string
	DropoffAddress      *string
	SpecialRequirements *string
}

// Modify edits a booking. Changing the pickup time or either address clears
// any assignment, reprices, and re-matches.
func (s *Service) Modify(ctx context.Context, rideID types.ID, req ModifyRequest) (*ride.Request, error) {
	r, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	switch r.Status {
	case ride.StatusPending, ride.StatusDriverAssigned, ride.StatusConfirmed, ride.StatusUnmatched:
	default:
		return nil, fmt.Errorf("%w: ride is %s", ErrNotModifiable, r.Status)
	}

	critical := false
	originalPickupAt := r.PickupAt
	if req.PickupAt != nil && !req.PickupAt.Equal(r.PickupAt) {
		lead := req.PickupAt.Sub(s.now())
		if lead < s.cfg.MinLeadTime || lead > s.cfg.MaxLeadTime {
			return nil, fmt.Errorf("%w: new pickup time outside the booking window", ErrValidation)
		}
		r.PickupAt = *req.PickupAt
		critical = true
	}
	if req.PickupAddress != nil && *req.PickupAddress != r.PickupAddress {
		loc, err := s.geocoder.Geocode(ctx, *req.PickupAddress)
		if err != nil {
			return nil, fmt.Errorf("%w: pickup address not resolvable", ErrValidation)
		}
		if !s.area.Contains(loc.Point) {
			return nil, ErrOutsideServiceArea
		}
		r.PickupAddress = loc.DisplayName
		r.Pickup = loc.Point
		critical = true
	}
	if req.DropoffAddress != nil && *req.DropoffAddress != r.DropoffAddress {
		loc, err := s.geocoder.Geocode(ctx, *req.DropoffAddress)
		if err != nil {
			return nil, fmt.Errorf("%w: dropoff address not resolvable", ErrValidation)
		}
		if !s.area.Contains(loc.Point) {
			return nil, ErrOutsideServiceArea
		}
		r.DropoffAddress = loc.DisplayName
		r.Dropoff = loc.Point
		critical = true
	}
	if req.SpecialRequirements != nil {
		r.SpecialRequirements = *req.SpecialRequirements
	}

	if critical {
		route := s.router.DrivingRoute(ctx, r.Pickup, r.Dropoff)
		r.EstimatedDistanceKm = route.Summary.DistanceKm
		r.EstimatedDurationMin = route.Summary.DurationMin
		r.EstimatedFare = s.pricing.PreBookedFare(pricing.FareRequest{
			DistanceKm:         route.Summary.DistanceKm,
			DurationMin:        route.Summary.DurationMin,
			BookingType:        r.BookingType,
			Priority:           r.Priority,
			WheelchairRequired: r.WheelchairRequired,
			WaitingDurationMin: r.WaitingDurationMin,
		})
	}

	rematch := false
	if critical && r.DriverID != nil {
		driverID := *r.DriverID
		// The slot was consumed on the date the driver was booked for, which
		// a pickup-time edit may already have moved away from.
		if err := s.cal.ReleaseSlot(ctx, driverID, originalPickupAt); err != nil {
			s.log.Warn("release slot failed", "ride_id", r.ID, "driver_id", driverID, "err", err)
		}
		ev := dispatch.Event{Type: "ride_changed", RideID: r.ID, At: s.now()}
		if err := s.notifier.NotifyDriver(ctx, driverID, ev); err != nil {
			s.log.Warn("modify notification failed", "ride_id", r.ID, "err", err)
		}
		s.appendEvent(ctx, r.ID, r.Status, ride.StatusPending, "rider", &r.RiderID)
		r.Status = ride.StatusPending
		r.DriverID = nil
		r.VehicleID = nil
		rematch = true
	}
	if critical && r.Status == ride.StatusUnmatched {
		// An edit may make a previously unmatchable ride matchable again.
		s.appendEvent(ctx, r.ID, r.Status, ride.StatusPending, "rider", &r.RiderID)
		r.Status = ride.StatusPending
		rematch = true
	}

	if err := s.rides.UpdateDetails(ctx, r); err != nil {
		return nil, err
	}
	s.log.Info("booking modified", "ride_id", r.ID, "repriced", critical, "rematching", rematch)

	if rematch || (critical && r.Status == ride.StatusPending && r.DriverID == nil) {
		if err := s.matcher.Match(ctx, r.ID); err != nil {
			s.log.Warn("re-match after modify failed", "ride_id", r.ID, "err", err)
		}
	}
	return s.rides.Get(ctx, r.ID)
}

// GenerateFromTemplate expands a recurring template into bookings up to the
// given date, skipping exclusions and dates too close or already generated.
func (s *Service) GenerateFromTemplate(ctx context.Context, templateID types.ID, until time.Time) ([]*ride.Request, error) {
	t, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}

	from := s.now()
	if t.StartDate.After(from) {
		from = t.StartDate
	}
	if t.LastGeneratedUntil != nil && t.LastGeneratedUntil.After(from) {
		from = t.LastGeneratedUntil.AddDate(0, 0, 1)
	}

	bookingType := pricing.BookingRecurring
	if t.RoundTrip {
		bookingType = pricing.BookingRoundTrip
	}

	var created []*ride.Request
	for day := dateOnly(from); !day.After(dateOnly(until)); day = day.AddDate(0, 0, 1) {
		if !t.MatchesDate(day) || t.Excluded(day) {
			continue
		}
		pickupAt := day.Add(time.Duration(t.PickupTimeMin) * time.Minute)
		r, err := s.Create(ctx, CreateRequest{
			RiderID:            t.RiderID,
			PickupAddress:      t.PickupAddress,
			DropoffAddress:     t.DropoffAddress,
			PickupAt:           pickupAt,
			BookingType:        bookingType,
			Priority:           t.Priority,
			Purpose:            t.Purpose,
			WheelchairRequired: t.WheelchairRequired,
			AssistanceRequired: t.AssistanceRequired,
			WaitingDurationMin: t.WaitingDurationMin,
		})
		if err != nil {
			if errors.Is(err, ErrValidation) {
				// Occurrence too close or too far out; skip it.
				continue
			}
			return created, err
		}
		created = append(created, r)
	}

	if err := s.templates.SetGeneratedUntil(ctx, templateID, dateOnly(until)); err != nil {
		return created, err
	}
	s.log.Info("recurring bookings generated",
		"template_id", templateID, "count", len(created), "until", until.Format("2006-01-02"))
	return created, nil
}

// Get returns the booking with current status.
func (s *Service) Get(ctx context.Context, rideID types.ID) (*ride.Request, error) {
	return s.rides.Get(ctx, rideID)
}

func (s *Service) appendEvent(ctx context.Context, rideID types.ID, from, to ride.Status, actorType string, actorID *types.ID) {
	e := &ride.Event{
		RideID:     rideID,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  s.now(),
	}
	if err := s.rides.AppendEvent(ctx, e); err != nil {
		s.log.Warn("state event append failed", "ride_id", rideID, "err", err)
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func newID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
