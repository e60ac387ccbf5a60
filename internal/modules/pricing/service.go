// README: Pricing service computes fares, fees, and earnings splits.
// Pure arithmetic over cents; no state, no I/O.
package pricing

import (
	"math"

	"rideconnect/internal/types"
)

type Service struct {
	cfg Config
}

func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// PreBookedFare computes the fare for a scheduled ride, including the
// pre-booking fee, accessibility surcharge, priority multiplier, and the
// round-trip discount and waiting fee where applicable.
func (s *Service) PreBookedFare(req FareRequest) types.Money {
	subtotal := s.baseAmount(req) + s.cfg.PreBookingFee
	if req.WheelchairRequired {
		subtotal += s.cfg.WheelchairSurcharge
	}
	subtotal = s.applyPriority(subtotal, req.Priority)

	if req.BookingType == BookingRoundTrip {
		subtotal *= 2
		subtotal = roundCents(float64(subtotal) * (1 - s.cfg.RoundTripDiscount))
		if req.WaitingDurationMin > 0 {
			subtotal += s.WaitingFee(req.WaitingDurationMin).Amount
		}
	}

	return s.money(subtotal)
}

// ImmediateFare computes the fare for an on-demand ride: no pre-booking fee,
// duration estimated from distance at city speed when not supplied.
func (s *Service) ImmediateFare(distanceKm float64, durationMin int, wheelchairRequired bool, priority Priority) types.Money {
	if durationMin <= 0 {
		durationMin = int(distanceKm * 2.5)
		if durationMin < 5 {
			durationMin = 5
		}
	}
	subtotal := s.baseAmount(FareRequest{DistanceKm: distanceKm, DurationMin: durationMin})
	if wheelchairRequired {
		subtotal += s.cfg.WheelchairSurcharge
	}
	subtotal = s.applyPriority(subtotal, priority)
	return s.money(subtotal)
}

// WaitingFee bills round-trip waiting time: the first FreeWaitingMin minutes
// are free, the remainder of the first hour at the standard rate, anything
// past the hour at the extended rate.
func (s *Service) WaitingFee(waitingMin int) types.Money {
	if waitingMin <= s.cfg.FreeWaitingMin {
		return s.money(0)
	}
	if waitingMin <= 60 {
		billableHours := float64(waitingMin-s.cfg.FreeWaitingMin) / 60
		return s.money(roundCents(billableHours * float64(s.cfg.WaitingRatePerHour)))
	}
	firstPeriod := 0.75 * float64(s.cfg.WaitingRatePerHour)
	extended := float64(waitingMin-60) / 60 * float64(s.cfg.ExtendedWaitingRate)
	return s.money(roundCents(firstPeriod + extended))
}

// CancellationFee applies the cancellation policy. Rider cancels are free at
// 24h or more before pickup, a flat fee between 2h and 24h, and half the
// fare inside 2h. Driver cancels always cost the fixed penalty.
func (s *Service) CancellationFee(fare types.Money, hoursUntilPickup float64, cancelledBy string) types.Money {
	if cancelledBy == "driver" {
		return s.money(s.cfg.DriverCancelPenalty)
	}
	switch {
	case hoursUntilPickup >= 24:
		return s.money(0)
	case hoursUntilPickup >= 2:
		return s.money(s.cfg.RiderCancelFlatFee)
	default:
		return fare.MulRate(s.cfg.RiderCancelLatePct)
	}
}

// RiderCompensation is the credit owed to a rider whose confirmed ride was
// cancelled by the driver.
func (s *Service) RiderCompensation() types.Money {
	return s.money(s.cfg.RiderCompensation)
}

// DriverEarnings splits a gross fare between the driver and the platform.
func (s *Service) DriverEarnings(gross types.Money) Earnings {
	fee := gross.MulRate(s.cfg.PlatformCommission)
	return Earnings{Driver: gross.Sub(fee), PlatformFee: fee}
}

// Incentive is the bonus added on top of the base fare for priority rides:
// 15% for high, 25% for urgent.
func (s *Service) Incentive(base types.Money, priority Priority) types.Money {
	switch priority {
	case PriorityHigh:
		return base.MulRate(0.15)
	case PriorityUrgent:
		return base.MulRate(0.25)
	default:
		return types.Money{Amount: 0, Currency: base.Currency}
	}
}

// Surge adjusts a fare for the current demand level.
func (s *Service) Surge(base types.Money, demand DemandLevel) types.Money {
	multipliers := map[DemandLevel]float64{
		DemandLow:      0.9,
		DemandNormal:   1.0,
		DemandHigh:     1.3,
		DemandVeryHigh: 1.5,
	}
	m, ok := multipliers[demand]
	if !ok {
		m = 1.0
	}
	return base.MulRate(m)
}

// EstimateRange is the min/max envelope shown to riders before booking.
func (s *Service) EstimateRange(req FareRequest) FareRange {
	est := s.PreBookedFare(req)
	return FareRange{
		Min:       s.Surge(est, DemandLow),
		Max:       s.Surge(est, DemandHigh),
		Estimated: est,
	}
}

func (s *Service) baseAmount(req FareRequest) int64 {
	distanceFare := roundCents(req.DistanceKm * float64(s.cfg.PerKm))
	timeFare := int64(req.DurationMin) * s.cfg.PerMin
	return s.cfg.BaseFare + distanceFare + timeFare
}

func (s *Service) applyPriority(cents int64, priority Priority) int64 {
	m, ok := s.cfg.PriorityMultipliers[priority]
	if !ok {
		m = 1.0
	}
	return roundCents(float64(cents) * m)
}

func (s *Service) money(cents int64) types.Money {
	return types.Money{Amount: cents, Currency: s.cfg.Currency}
}

func roundCents(v float64) int64 {
	return int64(math.Round(v))
}
