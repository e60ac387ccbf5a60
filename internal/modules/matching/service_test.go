package matching

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"rideconnect/internal/config"
	"rideconnect/internal/dispatch"
	"rideconnect/internal/geo"
	"rideconnect/internal/modules/calendar"
	"rideconnect/internal/modules/driver"
	"rideconnect/internal/modules/pricing"
	"rideconnect/internal/modules/ride"
	"rideconnect/internal/types"
)

var lisbonCentre = types.Point{Lat: 38.7223, Lng: -9.1393}

// pointAtKm places a point roughly km kilometres north of the centre.
func pointAtKm(km float64) types.Point {
	return types.Point{Lat: lisbonCentre.Lat + km/111.0, Lng: lisbonCentre.Lng}
}

// ---------------------------------------------------------------------------
// In-memory offer + ride store. One mutex covers both so AcceptOffer is as
// atomic as the SQL transaction it stands in for.
// ---------------------------------------------------------------------------

type memStore struct {
	mu     sync.Mutex
	offers map[types.ID]*Offer
	rides  map[types.ID]*ride.Request
}

func newMemStore() *memStore {
	return &memStore{
		offers: make(map[types.ID]*Offer),
		rides:  make(map[types.ID]*ride.Request),
	}
}

func (m *memStore) addRide(r *ride.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rides[r.ID] = &cp
}

func (m *memStore) rideStatus(id types.ID) ride.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rides[id].Status
}

func (m *memStore) offersByStatus(rideID types.ID, status OfferStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.offers {
		if o.RideID == rideID && o.Status == status {
			n++
		}
	}
	return n
}

func (m *memStore) CreateOffers(_ context.Context, offers []*Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range offers {
		dup := false
		for _, existing := range m.offers {
			if existing.RideID == o.RideID && existing.DriverID == o.DriverID {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		cp := *o
		m.offers[o.ID] = &cp
	}
	return nil
}

func (m *memStore) Get(ctx context.Context, id types.ID) (*Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListByRide(_ context.Context, rideID types.ID) ([]*Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Offer
	for _, o := range m.offers {
		if o.RideID == rideID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriorityRank < out[j].PriorityRank })
	return out, nil
}

func (m *memStore) ListPendingByDriver(_ context.Context, driverID types.ID, now time.Time) ([]*Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Offer
	for _, o := range m.offers {
		if o.DriverID == driverID && o.Status == OfferPending && o.ExpiresAt.After(now) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) MarkExpired(_ context.Context, id types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.offers[id]; ok && o.Status == OfferPending {
		o.Status = OfferExpired
	}
	return nil
}

func (m *memStore) Decline(_ context.Context, id types.ID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok || o.Status != OfferPending {
		return ErrNotFound
	}
	o.Status = OfferDeclined
	o.DeclineReason = reason
	return nil
}

func (m *memStore) CountLivePending(_ context.Context, rideID types.ID, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.offers {
		if o.RideID == rideID && o.Status == OfferPending && o.ExpiresAt.After(now) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) OfferedDriverIDs(_ context.Context, rideID types.ID) ([]types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []types.ID
	for _, o := range m.offers {
		if o.RideID == rideID {
			ids = append(ids, o.DriverID)
		}
	}
	return ids, nil
}

func (m *memStore) AcceptOffer(_ context.Context, offerID, rideID, driverID, vehicleID types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rides[rideID]
	if !ok {
		return false, ride.ErrNotFound
	}
	o, ok := m.offers[offerID]
	if !ok {
		return false, ErrNotFound
	}

	if r.Status != ride.StatusPending {
		if o.Status == OfferPending {
			o.Status = OfferExpired
		}
		return false, nil
	}
	if o.Status != OfferPending {
		return false, nil
	}

	o.Status = OfferAccepted
	r.Status = ride.StatusDriverAssigned
	r.StatusVersion++
	r.DriverID = &driverID
	r.VehicleID = &vehicleID
	for _, sibling := range m.offers {
		if sibling.RideID == rideID && sibling.ID != offerID && sibling.Status == OfferPending {
			sibling.Status = OfferWithdrawn
		}
	}
	return true, nil
}

// RideStore side of the same backend.

type memRides struct{ *memStore }

func (m memRides) Get(_ context.Context, id types.ID) (*ride.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ride.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m memRides) UpdateStatus(_ context.Context, id types.ID, from, to ride.Status, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok || r.Status != from || r.StatusVersion != version {
		return false, nil
	}
	r.Status = to
	r.StatusVersion++
	return true, nil
}

func (m memRides) ListAssignedByDriverWindow(_ context.Context, driverID types.ID, from, to time.Time) ([]*ride.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ride.Request
	for _, r := range m.rides {
		if r.DriverID != nil && *r.DriverID == driverID &&
			(r.Status == ride.StatusDriverAssigned || r.Status == ride.StatusConfirmed) &&
			!r.PickupAt.Before(from) && r.PickupAt.Before(to) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Driver directory, calendar, notifier mocks
// ---------------------------------------------------------------------------

type mockDrivers struct {
	mu       sync.Mutex
	drivers  map[types.ID]*driver.Driver
	vehicles map[types.ID]*driver.Vehicle
}

func newMockDrivers() *mockDrivers {
	return &mockDrivers{
		drivers:  make(map[types.ID]*driver.Driver),
		vehicles: make(map[types.ID]*driver.Vehicle),
	}
}

func (m *mockDrivers) add(d *driver.Driver, accessibleVehicle bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = d
	m.vehicles[d.ID] = &driver.Vehicle{
		ID: types.ID("v-" + string(d.ID)), DriverID: d.ID, Active: true, Accessible: accessibleVehicle,
	}
}

func (m *mockDrivers) Get(_ context.Context, id types.ID) (*driver.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, driver.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDrivers) NearbyIDs(_ context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type entry struct {
		id   types.ID
		dist float64
	}
	var within []entry
	for id, d := range m.drivers {
		if d.Location == nil {
			continue
		}
		if dist := geo.HaversineKm(*d.Location, p); dist <= radiusKm {
			within = append(within, entry{id, dist})
		}
	}
	sort.Slice(within, func(i, j int) bool { return within[i].dist < within[j].dist })
	ids := make([]types.ID, len(within))
	for i, e := range within {
		ids[i] = e.id
	}
	return ids, nil
}

func (m *mockDrivers) VehicleFor(_ context.Context, driverID types.ID, needAccessible bool) (*driver.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[driverID]
	if !ok || (needAccessible && !v.Accessible) {
		return nil, driver.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

type mockCalendar struct {
	mu          sync.Mutex
	unavailable map[types.ID]string
	entries     map[types.ID]*calendar.Entry
	booked      map[types.ID]int
}

func newMockCalendar() *mockCalendar {
	return &mockCalendar{
		unavailable: make(map[types.ID]string),
		entries:     make(map[types.ID]*calendar.Entry),
		booked:      make(map[types.ID]int),
	}
}

func (m *mockCalendar) Entry(_ context.Context, driverID types.ID, _ time.Time) (*calendar.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[driverID]; ok {
		cp := *e
		return &cp, nil
	}
	return &calendar.Entry{
		DriverID: driverID, StartMin: 7 * 60, EndMin: 22 * 60, Status: calendar.StatusAvailable,
	}, nil
}

func (m *mockCalendar) CheckAvailability(_ context.Context, driverID types.ID, _ time.Time, _ int) (calendar.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reason, ok := m.unavailable[driverID]; ok {
		return calendar.Availability{Reason: reason}, nil
	}
	return calendar.Availability{Available: true}, nil
}

func (m *mockCalendar) BookSlot(_ context.Context, driverID types.ID, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.booked[driverID]++
	return nil
}

type mockNotifier struct {
	mu           sync.Mutex
	driverEvents map[types.ID][]string
	riderEvents  map[types.ID][]string
	failDrivers  bool
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{
		driverEvents: make(map[types.ID][]string),
		riderEvents:  make(map[types.ID][]string),
	}
}

func (m *mockNotifier) NotifyDriver(_ context.Context, driverID types.ID, ev dispatch.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDrivers {
		return errors.New("push channel down")
	}
	m.driverEvents[driverID] = append(m.driverEvents[driverID], ev.Type)
	return nil
}

func (m *mockNotifier) NotifyRider(_ context.Context, riderID types.ID, ev dispatch.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riderEvents[riderID] = append(m.riderEvents[riderID], ev.Type)
	return nil
}

func (m *mockNotifier) riderGot(riderID types.ID, event string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.riderEvents[riderID] {
		if e == event {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	store    *memStore
	drivers  *mockDrivers
	cal      *mockCalendar
	notifier *mockNotifier
	svc      *Service
}

func testMatchingCfg() config.MatchingConfig {
	return config.MatchingConfig{
		MaxOffers:        5,
		SearchRadiusKm:   10,
		WidenedRadiusKm:  15,
		RebatchMaxOffers: 3,
		OfferTTL:         2 * time.Hour,
		Scoring:          config.DefaultScoring(),
	}
}

func newFixture() *fixture {
	f := &fixture{
		store:    newMemStore(),
		drivers:  newMockDrivers(),
		cal:      newMockCalendar(),
		notifier: newMockNotifier(),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(f.store, f.drivers, memRides{f.store}, f.cal,
		pricing.NewService(pricing.DefaultConfig()), f.notifier, testMatchingCfg(), log)
	return f
}

func (f *fixture) addDriver(id types.ID, km float64, accessible bool) *driver.Driver {
	loc := pointAtKm(km)
	d := &driver.Driver{
		ID: id, Name: "Driver " + string(id), Rating: 4.8, TotalRides: 600,
		Active: true, ApplicationStatus: "approved",
		TrainingCompleted: true, AssessmentPassed: true,
		AccessibilityTraining: []string{"wheelchair"},
		Location:              &loc,
	}
	f.drivers.add(d, accessible)
	return d
}

func pendingRide(id types.ID) *ride.Request {
	return &ride.Request{
		ID: id, RiderID: "rider1",
		BookingType: pricing.BookingSingle, Priority: pricing.PriorityNormal,
		PickupAddress: "Rossio, Lisboa", Pickup: lisbonCentre,
		DropoffAddress: "Belém, Lisboa", Dropoff: types.Point{Lat: 38.6968, Lng: -9.2034},
		PickupAt:             time.Now().Add(24 * time.Hour),
		EstimatedDurationMin: 30,
		EstimatedDistanceKm:  8,
		EstimatedFare:        types.EUR(2000),
		Status:               ride.StatusPending,
	}
}

// ---------------------------------------------------------------------------
// Match
// ---------------------------------------------------------------------------

func TestMatch_CreatesOffersBestFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addDriver("d-near", 0.5, true)
	f.addDriver("d-mid", 4, true)
	f.addDriver("d-far", 9, true)

	r := pendingRide("ride1")
	f.store.addRide(r)

	if err := f.svc.Match(ctx, r.ID); err != nil {
		t.Fatalf("Match: %v", err)
	}

	offers, err := f.store.ListByRide(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(offers) != 3 {
		t.Fatalf("offers = %d, want 3", len(offers))
	}
	if offers[0].DriverID != "d-near" || offers[0].PriorityRank != 1 {
		t.Errorf("best offer = %s rank %d, want d-near rank 1", offers[0].DriverID, offers[0].PriorityRank)
	}
	if offers[0].Score <= offers[1].Score || offers[1].Score <= offers[2].Score {
		t.Errorf("scores not descending: %v %v %v", offers[0].Score, offers[1].Score, offers[2].Score)
	}

	// Earnings quote the full 20.00 fare, no bonus at normal priority.
	if offers[0].BaseFare.Amount != 2000 || offers[0].Bonus.Amount != 0 || offers[0].TotalEarnings.Amount != 2000 {
		t.Errorf("earnings = %+v", offers[0])
	}
	if offers[0].ExpiresAt.Sub(offers[0].OfferedAt) != 2*time.Hour {
		t.Errorf("TTL = %v", offers[0].ExpiresAt.Sub(offers[0].OfferedAt))
	}

	for _, id := range []types.ID{"d-near", "d-mid", "d-far"} {
		if len(f.notifier.driverEvents[id]) != 1 {
			t.Errorf("driver %s notifications = %v", id, f.notifier.driverEvents[id])
		}
	}
}

func TestMatch_UrgentPriorityCarriesBonus(t *testing.T) {
	f := newFixture()
	f.addDriver("d1", 1, true)
	r := pendingRide("ride1")
	r.Priority = pricing.PriorityUrgent
	f.store.addRide(r)

	if err := f.svc.Match(context.Background(), r.ID); err != nil {
		t.Fatal(err)
	}
	offers, _ := f.store.ListByRide(context.Background(), r.ID)
	if len(offers) != 1 {
		t.Fatalf("offers = %d", len(offers))
	}
	// 25% of the 20.00 fare.
	if offers[0].Bonus.Amount != 500 || offers[0].TotalEarnings.Amount != 2500 {
		t.Errorf("bonus = %d total = %d, want 500/2500", offers[0].Bonus.Amount, offers[0].TotalEarnings.Amount)
	}
}

func TestMatch_HighPriorityPaysFarePlusBonus(t *testing.T) {
	f := newFixture()
	f.addDriver("d1", 2, true)
	r := pendingRide("ride1")
	r.Priority = pricing.PriorityHigh
	f.store.addRide(r)

	if err := f.svc.Match(context.Background(), r.ID); err != nil {
		t.Fatal(err)
	}
	offers, _ := f.store.ListByRide(context.Background(), r.ID)
	if len(offers) != 1 {
		t.Fatalf("offers = %d", len(offers))
	}
	// 20.00 fare + 15% bonus = 23.00.
	o := offers[0]
	if o.BaseFare.Amount != 2000 || o.Bonus.Amount != 300 || o.TotalEarnings.Amount != 2300 {
		t.Errorf("base = %d bonus = %d total = %d, want 2000/300/2300",
			o.BaseFare.Amount, o.Bonus.Amount, o.TotalEarnings.Amount)
	}
}

func TestMatch_FiltersIneligibleDrivers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.addDriver("d-ok", 2, true)

	inactive := f.addDriver("d-inactive", 1, true)
	inactive.Active = false

	untrained := f.addDriver("d-untrained", 1, true)
	untrained.AccessibilityTraining = nil

	f.addDriver("d-no-wheelchair-van", 1, false)

	busy := f.addDriver("d-busy", 1, true)
	f.cal.unavailable[busy.ID] = "driver has a conflicting ride at 10:00"

	r := pendingRide("ride1")
	r.WheelchairRequired = true
	r.AssistanceRequired = []string{"wheelchair"}
	f.store.addRide(r)

	if err := f.svc.Match(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	offers, _ := f.store.ListByRide(ctx, r.ID)
	if len(offers) != 1 || offers[0].DriverID != "d-ok" {
		t.Fatalf("offers = %+v, want only d-ok", offers)
	}
}

func TestMatch_ExcludesDriverWithAdjacentBooking(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addDriver("d-busy", 1, true)
	f.addDriver("d-free", 3, true)

	r := pendingRide("ride1")
	f.store.addRide(r)

	// d-busy already has an assigned ride 40 minutes after this one ends;
	// that is a hard conflict, not a scoring penalty.
	busyID := types.ID("d-busy")
	booked := pendingRide("ride-booked")
	booked.Status = ride.StatusDriverAssigned
	booked.DriverID = &busyID
	booked.PickupAt = r.End().Add(40 * time.Minute)
	f.store.addRide(booked)

	if err := f.svc.Match(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	offers, _ := f.store.ListByRide(ctx, r.ID)
	if len(offers) != 1 || offers[0].DriverID != "d-free" {
		t.Fatalf("offers = %d, want only d-free", len(offers))
	}
}

func TestMatch_WidensRadiusOnce(t *testing.T) {
	f := newFixture()
	// Only driver sits at 12km: outside the 10km pass, inside the 15km one.
	f.addDriver("d-outer", 12, true)
	r := pendingRide("ride1")
	f.store.addRide(r)

	if err := f.svc.Match(context.Background(), r.ID); err != nil {
		t.Fatal(err)
	}
	offers, _ := f.store.ListByRide(context.Background(), r.ID)
	if len(offers) != 1 || offers[0].DriverID != "d-outer" {
		t.Fatalf("offers = %+v, want d-outer via widened radius", offers)
	}
}

func TestMatch_NoCandidates_MarksUnmatched(t *testing.T) {
	f := newFixture()
	f.addDriver("d-too-far", 40, true)
	r := pendingRide("ride1")
	f.store.addRide(r)

	if err := f.svc.Match(context.Background(), r.ID); err != nil {
		t.Fatal(err)
	}
	if got := f.store.rideStatus(r.ID); got != ride.StatusUnmatched {
		t.Errorf("ride status = %s, want unmatched", got)
	}
	if !f.notifier.riderGot("rider1", "ride_unmatched") {
		t.Error("rider was not told the ride is unmatched")
	}
}

func TestMatch_NotificationFailureDoesNotAbort(t *testing.T) {
	f := newFixture()
	f.notifier.failDrivers = true
	f.addDriver("d1", 1, true)
	r := pendingRide("ride1")
	f.store.addRide(r)

	if err := f.svc.Match(context.Background(), r.ID); err != nil {
		t.Fatalf("Match should swallow notification failures, got %v", err)
	}
	offers, _ := f.store.ListByRide(context.Background(), r.ID)
	if len(offers) != 1 {
		t.Fatalf("offers = %d, want 1 despite failed push", len(offers))
	}
}

// ---------------------------------------------------------------------------
// RespondToOffer
// ---------------------------------------------------------------------------

func TestRespondToOffer_AcceptWinsAndWithdrawsSiblings(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addDriver("d1", 1, true)
	f.addDriver("d2", 3, true)
	r := pendingRide("ride1")
	f.store.addRide(r)
	if err := f.svc.Match(ctx, r.ID); err != nil {
		t.Fatal(err)
	}

	offers, _ := f.store.ListByRide(ctx, r.ID)
	if len(offers) != 2 {
		t.Fatalf("offers = %d", len(offers))
	}

	won, err := f.svc.RespondToOffer(ctx, offers[0].ID, offers[0].DriverID, true, "")
	if err != nil {
		t.Fatalf("RespondToOffer: %v", err)
	}
	if !won {
		t.Fatal("first accept should win")
	}

	if got := f.store.rideStatus(r.ID); got != ride.StatusDriverAssigned {
		t.Errorf("ride status = %s, want driver_assigned", got)
	}
	if n := f.store.offersByStatus(r.ID, OfferWithdrawn); n != 1 {
		t.Errorf("withdrawn siblings = %d, want 1", n)
	}
	if f.cal.booked[offers[0].DriverID] != 1 {
		t.Error("winner's calendar slot was not booked")
	}
	if !f.notifier.riderGot("rider1", "driver_assigned") {
		t.Error("rider was not told about the assignment")
	}

	// The withdrawn sibling can no longer accept.
	won, err = f.svc.RespondToOffer(ctx, offers[1].ID, offers[1].DriverID, true, "")
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Error("second accept must not win")
	}
}

func TestRespondToOffer_ExpiredIsFalseOutcome(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addDriver("d1", 1, true)
	r := pendingRide("ride1")
	f.store.addRide(r)
	if err := f.svc.Match(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	offers, _ := f.store.ListByRide(ctx, r.ID)

	// Jump past the TTL.
	f.svc.now = func() time.Time { return time.Now().Add(3 * time.Hour) }

	won, err := f.svc.RespondToOffer(ctx, offers[0].ID, "d1", true, "")
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Error("expired offer must not win")
	}
	got, _ := f.store.Get(ctx, offers[0].ID)
	if got.Status != OfferExpired {
		t.Errorf("offer status = %s, want expired", got.Status)
	}
	if f.store.rideStatus(r.ID) != ride.StatusPending {
		t.Error("expired accept must not mutate the ride")
	}
}

func TestRespondToOffer_WrongDriver(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addDriver("d1", 1, true)
	r := pendingRide("ride1")
	f.store.addRide(r)
	if err := f.svc.Match(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	offers, _ := f.store.ListByRide(ctx, r.ID)

	if _, err := f.svc.RespondToOffer(ctx, offers[0].ID, "someone-else", true, ""); !errors.Is(err, ErrWrongDriver) {
		t.Errorf("err = %v, want ErrWrongDriver", err)
	}
}

func TestRespondToOffer_DeclineTriggersWidenedRebatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addDriver("d-inner", 2, true)
	f.addDriver("d-outer", 12, true) // only reachable at the widened radius
	r := pendingRide("ride1")
	f.store.addRide(r)
	if err := f.svc.Match(ctx, r.ID); err != nil {
		t.Fatal(err)
	}

	offers, _ := f.store.ListByRide(ctx, r.ID)
	if len(offers) != 1 || offers[0].DriverID != "d-inner" {
		t.Fatalf("initial offers = %+v", offers)
	}

	won, err := f.svc.RespondToOffer(ctx, offers[0].ID, "d-inner", false, "too far from me")
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Error("decline must not win")
	}

	offers, _ = f.store.ListByRide(ctx, r.ID)
	if len(offers) != 2 {
		t.Fatalf("offers after rebatch = %d, want 2", len(offers))
	}
	var rebatched *Offer
	for _, o := range offers {
		if o.DriverID == "d-outer" {
			rebatched = o
		}
		if o.DriverID == "d-inner" && o.Status != OfferDeclined {
			t.Errorf("declined offer status = %s", o.Status)
		}
	}
	if rebatched == nil || rebatched.Status != OfferPending {
		t.Fatalf("rebatch did not reach d-outer: %+v", offers)
	}
	if f.store.rideStatus(r.ID) != ride.StatusPending {
		t.Error("ride should stay pending while offers are live")
	}
}

func TestRespondToOffer_DeclineExhaustionMarksUnmatched(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addDriver("d-only", 2, true)
	r := pendingRide("ride1")
	f.store.addRide(r)
	if err := f.svc.Match(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	offers, _ := f.store.ListByRide(ctx, r.ID)

	if _, err := f.svc.RespondToOffer(ctx, offers[0].ID, "d-only", false, "on a break"); err != nil {
		t.Fatal(err)
	}

	if got := f.store.rideStatus(r.ID); got != ride.StatusUnmatched {
		t.Errorf("ride status = %s, want unmatched", got)
	}
	if !f.notifier.riderGot("rider1", "ride_unmatched") {
		t.Error("rider was not told the ride is unmatched")
	}

	got, _ := f.store.Get(ctx, offers[0].ID)
	if got.DeclineReason != "on a break" {
		t.Errorf("decline reason = %q", got.DeclineReason)
	}
}

func TestOffersForDriver_ExcludesExpired(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addDriver("d1", 1, true)
	r := pendingRide("ride1")
	f.store.addRide(r)
	if err := f.svc.Match(ctx, r.ID); err != nil {
		t.Fatal(err)
	}

	live, err := f.svc.OffersForDriver(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 1 {
		t.Fatalf("live offers = %d, want 1", len(live))
	}

	f.svc.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	live, err = f.svc.OffersForDriver(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 0 {
		t.Fatalf("live offers after TTL = %d, want 0", len(live))
	}
}

// Guard against accidental interface drift between the mocks and the real
// stores.
var (
	_ OfferStore        = (*memStore)(nil)
	_ RideStore         = memRides{}
	_ DriverDirectory   = (*mockDrivers)(nil)
	_ Calendar          = (*mockCalendar)(nil)
	_ dispatch.Notifier = (*mockNotifier)(nil)
)
