// README: Ride offers and scored driver candidates.
package matching

import (
	"errors"
	"time"

	"rideconnect/internal/modules/driver"
	"rideconnect/internal/types"
)

type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferDeclined  OfferStatus = "declined"
	OfferExpired   OfferStatus = "expired"
	OfferWithdrawn OfferStatus = "withdrawn"
)

var (
	ErrNotFound    = errors.New("offer not found")
	ErrWrongDriver = errors.New("offer belongs to another driver")
	ErrNoVehicle   = errors.New("driver has no suitable active vehicle")
)

// ScoreBreakdown carries the per-component scores (each 0-100) behind a
// candidate's weighted total.
type ScoreBreakdown struct {
	Distance     float64 `json:"distance"`
	Experience   float64 `json:"experience"`
	Availability float64 `json:"availability"`
	Efficiency   float64 `json:"efficiency"`
	Rating       float64 `json:"rating"`
	Total        float64 `json:"total"`
}

// Offer is one invitation for a driver to take a ride. At most one offer per
// ride ends up accepted.
type Offer struct {
	ID       types.ID
	RideID   types.ID
	DriverID types.ID

	Status      OfferStatus
	OfferedAt   time.Time
	ExpiresAt   time.Time
	RespondedAt *time.Time

	// Earnings presented to the driver: the fare split plus any priority bonus.
	BaseFare      types.Money
	Bonus         types.Money
	TotalEarnings types.Money

	DistanceToPickupKm float64
	Score              float64
	Breakdown          ScoreBreakdown
	PriorityRank       int

	DeclineReason string
}

// Expired reports whether the offer's response window has passed. Expiry is
// evaluated lazily at read time; no background sweeper mutates offers.
func (o *Offer) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// Live reports whether the offer still awaits a response.
func (o *Offer) Live(now time.Time) bool {
	return o.Status == OfferPending && !o.Expired(now)
}

// Candidate is a scored driver under consideration for a ride.
type Candidate struct {
	Driver     *driver.Driver
	DistanceKm float64
	Breakdown  ScoreBreakdown
}
