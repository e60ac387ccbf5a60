package matching

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"rideconnect/internal/modules/ride"
	"rideconnect/internal/types"
)

// TestConcurrentAccepts_ExactlyOneWinner fires every offered driver's accept
// at once and verifies the ride is assigned exactly once.
func TestConcurrentAccepts_ExactlyOneWinner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const drivers = 5
	for i := 0; i < drivers; i++ {
		f.addDriver(types.ID(fmt.Sprintf("d%d", i)), float64(i)+0.5, true)
	}
	r := pendingRide("ride1")
	f.store.addRide(r)
	if err := f.svc.Match(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	offers, err := f.store.ListByRide(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(offers) != drivers {
		t.Fatalf("offers = %d, want %d", len(offers), drivers)
	}

	var wg sync.WaitGroup
	wins := make(chan types.ID, drivers)
	for _, o := range offers {
		wg.Add(1)
		go func(o *Offer) {
			defer wg.Done()
			won, err := f.svc.RespondToOffer(ctx, o.ID, o.DriverID, true, "")
			if err != nil {
				t.Errorf("RespondToOffer(%s): %v", o.ID, err)
				return
			}
			if won {
				wins <- o.DriverID
			}
		}(o)
	}
	wg.Wait()
	close(wins)

	var winners []types.ID
	for id := range wins {
		winners = append(winners, id)
	}
	if len(winners) != 1 {
		t.Fatalf("winners = %v, want exactly one", winners)
	}

	if got := f.store.rideStatus(r.ID); got != ride.StatusDriverAssigned {
		t.Errorf("ride status = %s, want driver_assigned", got)
	}
	f.store.mu.Lock()
	assigned := f.store.rides[r.ID].DriverID
	f.store.mu.Unlock()
	if assigned == nil || *assigned != winners[0] {
		t.Errorf("ride assigned to %v, winner was %s", assigned, winners[0])
	}

	// Every losing offer must be settled, not left pending.
	accepted, pending := 0, 0
	final, _ := f.store.ListByRide(ctx, r.ID)
	for _, o := range final {
		switch o.Status {
		case OfferAccepted:
			accepted++
		case OfferPending:
			pending++
		}
	}
	if accepted != 1 {
		t.Errorf("accepted offers = %d, want 1", accepted)
	}
	if pending != 0 {
		t.Errorf("pending offers = %d, want 0", pending)
	}

	// The winner booked exactly one calendar slot; losers booked none.
	f.cal.mu.Lock()
	defer f.cal.mu.Unlock()
	total := 0
	for _, n := range f.cal.booked {
		total += n
	}
	if total != 1 {
		t.Errorf("calendar slots booked = %d, want 1", total)
	}
}

// TestConcurrentAcceptAndDecline races a decline-driven re-batch against an
// acceptance; whatever the interleaving, the ride must never regress from
// driver_assigned and no second acceptance may appear.
func TestConcurrentAcceptAndDecline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addDriver("d-accept", 1, true)
	f.addDriver("d-decline", 3, true)
	r := pendingRide("ride1")
	f.store.addRide(r)
	if err := f.svc.Match(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	offers, _ := f.store.ListByRide(ctx, r.ID)
	if len(offers) != 2 {
		t.Fatalf("offers = %d", len(offers))
	}
	var acceptOffer, declineOffer *Offer
	for _, o := range offers {
		switch o.DriverID {
		case "d-accept":
			acceptOffer = o
		case "d-decline":
			declineOffer = o
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := f.svc.RespondToOffer(ctx, acceptOffer.ID, "d-accept", true, ""); err != nil {
			t.Errorf("accept: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := f.svc.RespondToOffer(ctx, declineOffer.ID, "d-decline", false, "busy"); err != nil {
			t.Errorf("decline: %v", err)
		}
	}()
	wg.Wait()

	if got := f.store.rideStatus(r.ID); got != ride.StatusDriverAssigned {
		t.Errorf("ride status = %s, want driver_assigned", got)
	}
	if n := f.store.offersByStatus(r.ID, OfferAccepted); n != 1 {
		t.Errorf("accepted offers = %d, want 1", n)
	}
}
