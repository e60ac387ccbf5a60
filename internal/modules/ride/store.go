// README: Ride request store backed by PostgreSQL.
package ride

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rideconnect/internal/modules/pricing"
	"rideconnect/internal/types"
)

var ErrNotFound = errors.New("ride request not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const requestColumns = `
	id, rider_id, booking_type, purpose, priority,
	pickup_address, pickup_lat, pickup_lng,
	dropoff_address, dropoff_lat, dropoff_lng,
	pickup_at, pickup_window_min, estimated_duration_min, estimated_distance_km,
	special_requirements, wheelchair_required, assistance_required,
	return_pickup_at, flexible_return, earliest_return_at, latest_return_at, waiting_duration_min,
	estimated_fare_cents, payment_intent_id, status, status_version,
	driver_id, vehicle_id,
	cancelled_at, cancellation_reason, cancellation_fee_cents,
	created_at, updated_at`

func (s *Store) Create(ctx context.Context, r *Request) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ride_requests (
			id, rider_id, booking_type, purpose, priority,
			pickup_address, pickup_lat, pickup_lng,
			dropoff_address, dropoff_lat, dropoff_lng,
			pickup_at, pickup_window_min, estimated_duration_min, estimated_distance_km,
			special_requirements, wheelchair_required, assistance_required,
			return_pickup_at, flexible_return, earliest_return_at, latest_return_at, waiting_duration_min,
			estimated_fare_cents, payment_intent_id, status, status_version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21, $22, $23,
			$24, $25, $26, $27, $28, $28
		)`,
		string(r.ID), string(r.RiderID), string(r.BookingType), r.Purpose, string(r.Priority),
		r.PickupAddress, r.Pickup.Lat, r.Pickup.Lng,
		r.DropoffAddress, r.Dropoff.Lat, r.Dropoff.Lng,
		r.PickupAt, r.PickupWindowMin, r.EstimatedDurationMin, r.EstimatedDistanceKm,
		r.SpecialRequirements, r.WheelchairRequired, r.AssistanceRequired,
		r.ReturnPickupAt, r.FlexibleReturn, r.EarliestReturnAt, r.LatestReturnAt, r.WaitingDurationMin,
		r.EstimatedFare.Amount, r.PaymentIntentID, string(r.Status), r.StatusVersion, r.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Request, error) {
	row := s.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM ride_requests WHERE id = $1`, string(id))
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// UpdateStatus performs an optimistic compare-and-set transition.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE ride_requests
		SET status = $1,
		    status_version = status_version + 1,
		    updated_at = NOW()
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to), string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Release clears a driver assignment and returns the ride to the matching
// pool. Used when the assigned driver cancels or the rider edits a critical
// field.
func (s *Store) Release(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE ride_requests
		SET status = 'pending',
		    status_version = status_version + 1,
		    driver_id = NULL,
		    vehicle_id = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'driver_assigned'`,
		string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Cancel marks the ride cancelled and records the fee.
func (s *Store) Cancel(ctx context.Context, id types.ID, from Status, reason string, fee types.Money) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE ride_requests
		SET status = 'cancelled',
		    status_version = status_version + 1,
		    cancelled_at = NOW(),
		    cancellation_reason = $1,
		    cancellation_fee_cents = $2,
		    updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		reason, fee.Amount, string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateDetails rewrites the reschedulable fields after a modification.
func (s *Store) UpdateDetails(ctx context.Context, r *Request) error {
	_, err := s.db.Exec(ctx, `
		UPDATE ride_requests
		SET pickup_address = $1, pickup_lat = $2, pickup_lng = $3,
		    dropoff_address = $4, dropoff_lat = $5, dropoff_lng = $6,
		    pickup_at = $7, estimated_duration_min = $8, estimated_distance_km = $9,
		    estimated_fare_cents = $10, special_requirements = $11,
		    status = $12, status_version = status_version + 1,
		    driver_id = $13, vehicle_id = $14,
		    updated_at = NOW()
		WHERE id = $15`,
		r.PickupAddress, r.Pickup.Lat, r.Pickup.Lng,
		r.DropoffAddress, r.Dropoff.Lat, r.Dropoff.Lng,
		r.PickupAt, r.EstimatedDurationMin, r.EstimatedDistanceKm,
		r.EstimatedFare.Amount, r.SpecialRequirements,
		string(r.Status), idPtr(r.DriverID), idPtr(r.VehicleID),
		string(r.ID),
	)
	return err
}

// ListAssignedByDriverDay returns the driver's confirmed or assigned rides
// with pickup inside [dayStart, dayEnd), ordered by pickup time.
func (s *Store) ListAssignedByDriverDay(ctx context.Context, driverID types.ID, dayStart, dayEnd time.Time) ([]*Request, error) {
	return s.listAssigned(ctx, driverID, dayStart, dayEnd)
}

// ListAssignedByDriverWindow returns the driver's confirmed or assigned
// rides with pickup inside the window. Feeds the route-efficiency score.
func (s *Store) ListAssignedByDriverWindow(ctx context.Context, driverID types.ID, from, to time.Time) ([]*Request, error) {
	return s.listAssigned(ctx, driverID, from, to)
}

func (s *Store) listAssigned(ctx context.Context, driverID types.ID, from, to time.Time) ([]*Request, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM ride_requests
		WHERE driver_id = $1
		  AND status IN ('driver_assigned', 'confirmed')
		  AND pickup_at >= $2 AND pickup_at < $3
		ORDER BY pickup_at`,
		string(driverID), from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ride_state_events (
			ride_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.RideID), string(e.FromStatus), string(e.ToStatus),
		e.ActorType, idPtr(e.ActorID), e.CreatedAt,
	)
	return err
}

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	var bookingType, priority, status string
	var driverID, vehicleID, cancelReason *string
	var feeCents, cancelFeeCents *int64
	err := row.Scan(
		&r.ID, &r.RiderID, &bookingType, &r.Purpose, &priority,
		&r.PickupAddress, &r.Pickup.Lat, &r.Pickup.Lng,
		&r.DropoffAddress, &r.Dropoff.Lat, &r.Dropoff.Lng,
		&r.PickupAt, &r.PickupWindowMin, &r.EstimatedDurationMin, &r.EstimatedDistanceKm,
		&r.SpecialRequirements, &r.WheelchairRequired, &r.AssistanceRequired,
		&r.ReturnPickupAt, &r.FlexibleReturn, &r.EarliestReturnAt, &r.LatestReturnAt, &r.WaitingDurationMin,
		&feeCents, &r.PaymentIntentID, &status, &r.StatusVersion,
		&driverID, &vehicleID,
		&r.CancelledAt, &cancelReason, &cancelFeeCents,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.BookingType = pricing.BookingTypeOf(bookingType)
	r.Priority = pricing.PriorityOf(priority)
	r.Status = Status(status)
	if feeCents != nil {
		r.EstimatedFare = types.EUR(*feeCents)
	}
	if driverID != nil {
		id := types.ID(*driverID)
		r.DriverID = &id
	}
	if vehicleID != nil {
		id := types.ID(*vehicleID)
		r.VehicleID = &id
	}
	if cancelReason != nil {
		r.CancellationReason = *cancelReason
	}
	if cancelFeeCents != nil {
		fee := types.EUR(*cancelFeeCents)
		r.CancellationFee = &fee
	}
	return &r, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
