// README: Matching service: candidate discovery, offer batches, responses,
// re-batching with a widened radius.
package matching

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"sort"
	"time"

	"rideconnect/internal/config"
	"rideconnect/internal/dispatch"
	"rideconnect/internal/geo"
	"rideconnect/internal/modules/calendar"
	"rideconnect/internal/modules/driver"
	"rideconnect/internal/modules/pricing"
	"rideconnect/internal/modules/ride"
	"rideconnect/internal/observability"
	"rideconnect/internal/types"
)

// OfferStore is the offer persistence surface.
type OfferStore interface {
	CreateOffers(ctx context.Context, offers []*Offer) error
	Get(ctx context.Context, id types.ID) (*Offer, error)
	ListByRide(ctx context.Context, rideID types.ID) ([]*Offer, error)
	ListPendingByDriver(ctx context.Context, driverID types.ID, now time.Time) ([]*Offer, error)
	MarkExpired(ctx context.Context, id types.ID) error
	Decline(ctx context.Context, id types.ID, reason string) error
	CountLivePending(ctx context.Context, rideID types.ID, now time.Time) (int, error)
	OfferedDriverIDs(ctx context.Context, rideID types.ID) ([]types.ID, error)
	AcceptOffer(ctx context.Context, offerID, rideID, driverID, vehicleID types.ID) (bool, error)
}

// DriverDirectory resolves candidate drivers and their vehicles.
type DriverDirectory interface {
	Get(ctx context.Context, id types.ID) (*driver.Driver, error)
	NearbyIDs(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
	VehicleFor(ctx context.Context, driverID types.ID, needAccessible bool) (*driver.Vehicle, error)
}

// RideStore is the slice of the ride module the matcher needs.
type RideStore interface {
	Get(ctx context.Context, id types.ID) (*ride.Request, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to ride.Status, version int) (bool, error)
	ListAssignedByDriverWindow(ctx context.Context, driverID types.ID, from, to time.Time) ([]*ride.Request, error)
}

// Calendar gates and books driver availability.
type Calendar interface {
	Entry(ctx context.Context, driverID types.ID, date time.Time) (*calendar.Entry, error)
	CheckAvailability(ctx context.Context, driverID types.ID, pickupAt time.Time, durationMin int) (calendar.Availability, error)
	BookSlot(ctx context.Context, driverID types.ID, date time.Time) error
}

type Service struct {
	offers   OfferStore
	drivers  DriverDirectory
	rides    RideStore
	cal      Calendar
	pricing  *pricing.Service
	notifier dispatch.Notifier
	cfg      config.MatchingConfig
	log      *slog.Logger
	now      func() time.Time
}

func NewService(offers OfferStore, drivers DriverDirectory, rides RideStore, cal Calendar,
	pricingSvc *pricing.Service, notifier dispatch.Notifier, cfg config.MatchingConfig, log *slog.Logger) *Service {
	return &Service{
		offers:   offers,
		drivers:  drivers,
		rides:    rides,
		cal:      cal,
		pricing:  pricingSvc,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// FindBestMatches discovers, filters, and scores drivers for a ride within
// the radius, excluding the given ids, best score first.
func (s *Service) FindBestMatches(ctx context.Context, r *ride.Request, radiusKm float64, exclude map[types.ID]bool) ([]Candidate, error) {
	start := s.now()
	nearby, err := s.drivers.NearbyIDs(ctx, r.Pickup, radiusKm)
	if err != nil {
		return nil, err
	}

	var cands []Candidate
	for _, id := range nearby {
		if exclude[id] {
			continue
		}
		c, ok := s.evaluate(ctx, id, r)
		if !ok {
			continue
		}
		if c.Breakdown.Total <= s.cfg.Scoring.MinTotalScore {
			continue
		}
		cands = append(cands, c)
	}

	sort.Slice(cands, func(i, j int) bool { return cands[i].Breakdown.Total > cands[j].Breakdown.Total })
	observability.MatchLatency.Observe(s.now().Sub(start).Seconds())
	return cands, nil
}

// evaluate runs the hard filters and, when they pass, scores the driver.
func (s *Service) evaluate(ctx context.Context, id types.ID, r *ride.Request) (Candidate, bool) {
	d, err := s.drivers.Get(ctx, id)
	if err != nil || !d.Eligible() || d.Location == nil {
		return Candidate{}, false
	}
	if !d.TrainedFor(r.AssistanceRequired) {
		return Candidate{}, false
	}
	if r.WheelchairRequired {
		if _, err := s.drivers.VehicleFor(ctx, id, true); err != nil {
			return Candidate{}, false
		}
	}

	// A ride already booked within an hour of the requested window
	// disqualifies outright, regardless of score.
	conflicts, err := s.rides.ListAssignedByDriverWindow(ctx, id, r.PickupAt.Add(-time.Hour), r.End().Add(time.Hour))
	if err != nil || len(conflicts) > 0 {
		return Candidate{}, false
	}

	avail, err := s.cal.CheckAvailability(ctx, id, r.PickupAt, r.EstimatedDurationMin)
	if err != nil || !avail.Available {
		return Candidate{}, false
	}

	distance := geo.HaversineKm(*d.Location, r.Pickup)

	startMin := calendar.MinuteOfDay(r.PickupAt)
	endMin := startMin + r.EstimatedDurationMin
	entry, err := s.cal.Entry(ctx, id, r.PickupAt)
	if err != nil {
		entry = nil
	}

	b := ScoreBreakdown{
		Distance:     DistanceScore(distance),
		Experience:   ExperienceScore(d, r.WheelchairRequired),
		Availability: AvailabilityScore(entry, startMin, endMin),
		Efficiency:   EfficiencyScore(s.nearbyRides(ctx, id, r)),
		Rating:       RatingScore(d.Rating),
	}
	b.Total = TotalScore(b, s.cfg.Scoring)

	return Candidate{Driver: d, DistanceKm: distance, Breakdown: b}, true
}

// nearbyRides relates the candidate slot to the driver's bookings within two
// hours either side.
func (s *Service) nearbyRides(ctx context.Context, driverID types.ID, r *ride.Request) []NearbyRide {
	window := 2 * time.Hour
	existing, err := s.rides.ListAssignedByDriverWindow(ctx, driverID, r.PickupAt.Add(-window), r.End().Add(window))
	if err != nil {
		return nil
	}

	var out []NearbyRide
	for _, e := range existing {
		var gap time.Duration
		var dist float64
		if !e.End().After(r.PickupAt) {
			gap = r.PickupAt.Sub(e.End())
			dist = geo.HaversineKm(e.Dropoff, r.Pickup)
		} else if !r.End().After(e.PickupAt) {
			gap = e.PickupAt.Sub(r.End())
			dist = geo.HaversineKm(r.Dropoff, e.Pickup)
		} else {
			continue
		}
		out = append(out, NearbyRide{DistanceKm: dist, GapMin: int(gap.Minutes())})
	}
	return out
}

// CreateOffers persists one offer per candidate and notifies the drivers.
// Notification failures are logged and never abort the batch.
func (s *Service) CreateOffers(ctx context.Context, r *ride.Request, cands []Candidate) ([]*Offer, error) {
	now := s.now()
	// Offers quote the full estimated fare; the commission split happens at
	// payout, not here.
	base := r.EstimatedFare
	bonus := s.pricing.Incentive(base, r.Priority)

	offers := make([]*Offer, 0, len(cands))
	for i, c := range cands {
		offers = append(offers, &Offer{
			ID:                 types.ID(newID()),
			RideID:             r.ID,
			DriverID:           c.Driver.ID,
			Status:             OfferPending,
			OfferedAt:          now,
			ExpiresAt:          now.Add(s.cfg.OfferTTL),
			BaseFare:           base,
			Bonus:              bonus,
			TotalEarnings:      base.Add(bonus),
			DistanceToPickupKm: c.DistanceKm,
			Score:              c.Breakdown.Total,
			Breakdown:          c.Breakdown,
			PriorityRank:       i + 1,
		})
	}
	if err := s.offers.CreateOffers(ctx, offers); err != nil {
		return nil, err
	}
	observability.OffersCreatedTotal.Add(float64(len(offers)))

	for _, o := range offers {
		ev := dispatch.Event{
			Type:    "offer_created",
			RideID:  r.ID,
			OfferID: o.ID,
			Payload: map[string]any{
				"pickup_address":  r.PickupAddress,
				"dropoff_address": r.DropoffAddress,
				"pickup_at":       r.PickupAt,
				"earnings_cents":  o.TotalEarnings.Amount,
				"expires_at":      o.ExpiresAt,
			},
			At: now,
		}
		if err := s.notifier.NotifyDriver(ctx, o.DriverID, ev); err != nil {
			s.log.Warn("offer notification failed", "offer_id", o.ID, "driver_id", o.DriverID, "err", err)
		}
	}
	return offers, nil
}

// Match runs the initial offer batch for a pending ride, widening the search
// radius once if the first pass finds nobody. Exhaustion marks the ride
// unmatched.
func (s *Service) Match(ctx context.Context, rideID types.ID) error {
	r, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return err
	}
	if r.Status != ride.StatusPending {
		return nil
	}

	cands, err := s.FindBestMatches(ctx, r, s.cfg.SearchRadiusKm, nil)
	if err != nil {
		return err
	}
	if len(cands) == 0 {
		cands, err = s.FindBestMatches(ctx, r, s.cfg.WidenedRadiusKm, nil)
		if err != nil {
			return err
		}
	}
	if len(cands) == 0 {
		return s.markUnmatched(ctx, r)
	}

	if len(cands) > s.cfg.MaxOffers {
		cands = cands[:s.cfg.MaxOffers]
	}
	_, err = s.CreateOffers(ctx, r, cands)
	return err
}

// RespondToOffer settles a driver's response. The boolean reports whether
// the driver won the ride; stale and expired offers are a false outcome,
// never an error.
func (s *Service) RespondToOffer(ctx context.Context, offerID, driverID types.ID, accept bool, declineReason string) (bool, error) {
	o, err := s.offers.Get(ctx, offerID)
	if err != nil {
		return false, err
	}
	if o.DriverID != driverID {
		return false, ErrWrongDriver
	}
	if o.Status != OfferPending {
		return false, nil
	}
	now := s.now()
	if o.Expired(now) {
		if err := s.offers.MarkExpired(ctx, offerID); err != nil {
			return false, err
		}
		return false, nil
	}

	if accept {
		return s.accept(ctx, o)
	}
	return false, s.decline(ctx, o, declineReason)
}

func (s *Service) accept(ctx context.Context, o *Offer) (bool, error) {
	r, err := s.rides.Get(ctx, o.RideID)
	if err != nil {
		return false, err
	}
	vehicle, err := s.drivers.VehicleFor(ctx, o.DriverID, r.WheelchairRequired)
	if err != nil {
		return false, ErrNoVehicle
	}

	won, err := s.offers.AcceptOffer(ctx, o.ID, o.RideID, o.DriverID, vehicle.ID)
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}

	if err := s.cal.BookSlot(ctx, o.DriverID, r.PickupAt); err != nil {
		// The assignment stands; the calendar count is advisory.
		s.log.Warn("book slot after accept failed", "ride_id", r.ID, "driver_id", o.DriverID, "err", err)
	}
	observability.OffersAcceptedTotal.Inc()

	ev := dispatch.Event{
		Type:   "driver_assigned",
		RideID: r.ID,
		Payload: map[string]any{
			"driver_id":  o.DriverID,
			"vehicle_id": vehicle.ID,
		},
		At: s.now(),
	}
	if err := s.notifier.NotifyRider(ctx, r.RiderID, ev); err != nil {
		s.log.Warn("assignment notification failed", "ride_id", r.ID, "err", err)
	}
	s.log.Info("offer accepted", "offer_id", o.ID, "ride_id", r.ID, "driver_id", o.DriverID)
	return true, nil
}

func (s *Service) decline(ctx context.Context, o *Offer, reason string) error {
	if err := s.offers.Decline(ctx, o.ID, reason); err != nil {
		// Withdrawn or expired between the read and the decline.
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	observability.OffersDeclinedTotal.Inc()

	live, err := s.offers.CountLivePending(ctx, o.RideID, s.now())
	if err != nil {
		return err
	}
	if live > 0 {
		return nil
	}
	return s.rebatch(ctx, o.RideID)
}

// rebatch offers the ride to a fresh set of drivers at the widened radius
// once every earlier offer has been declined or expired.
func (s *Service) rebatch(ctx context.Context, rideID types.ID) error {
	r, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return err
	}
	if r.Status != ride.StatusPending {
		return nil
	}

	offered, err := s.offers.OfferedDriverIDs(ctx, rideID)
	if err != nil {
		return err
	}
	exclude := make(map[types.ID]bool, len(offered))
	for _, id := range offered {
		exclude[id] = true
	}

	cands, err := s.FindBestMatches(ctx, r, s.cfg.WidenedRadiusKm, exclude)
	if err != nil {
		return err
	}
	if len(cands) == 0 {
		return s.markUnmatched(ctx, r)
	}
	if len(cands) > s.cfg.RebatchMaxOffers {
		cands = cands[:s.cfg.RebatchMaxOffers]
	}
	_, err = s.CreateOffers(ctx, r, cands)
	return err
}

func (s *Service) markUnmatched(ctx context.Context, r *ride.Request) error {
	ok, err := s.rides.UpdateStatus(ctx, r.ID, ride.StatusPending, ride.StatusUnmatched, r.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		// Lost the race to an acceptance or a cancellation.
		return nil
	}
	observability.RidesUnmatchedTotal.Inc()
	ev := dispatch.Event{Type: "ride_unmatched", RideID: r.ID, At: s.now()}
	if err := s.notifier.NotifyRider(ctx, r.RiderID, ev); err != nil {
		s.log.Warn("unmatched notification failed", "ride_id", r.ID, "err", err)
	}
	s.log.Info("ride unmatched", "ride_id", r.ID)
	return nil
}

// OffersForDriver lists the driver's live offers.
func (s *Service) OffersForDriver(ctx context.Context, driverID types.ID) ([]*Offer, error) {
	return s.offers.ListPendingByDriver(ctx, driverID, s.now())
}

func newID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
