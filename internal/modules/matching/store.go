// README: Offer store backed by PostgreSQL; acceptance runs in one
// serialized transaction.
package matching

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rideconnect/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const offerColumns = `
	id, ride_id, driver_id, status, offered_at, expires_at, responded_at,
	base_fare_cents, bonus_cents, total_earnings_cents,
	distance_to_pickup_km, score, breakdown, priority_rank, decline_reason`

// CreateOffers inserts a batch; a driver already holding an offer for the
// ride is skipped rather than duplicated.
func (s *Store) CreateOffers(ctx context.Context, offers []*Offer) error {
	for _, o := range offers {
		breakdown, err := json.Marshal(o.Breakdown)
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(ctx, `
			INSERT INTO match_offers (
				id, ride_id, driver_id, status, offered_at, expires_at,
				base_fare_cents, bonus_cents, total_earnings_cents,
				distance_to_pickup_km, score, breakdown, priority_rank
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (ride_id, driver_id) DO NOTHING`,
			string(o.ID), string(o.RideID), string(o.DriverID), string(o.Status),
			o.OfferedAt, o.ExpiresAt,
			o.BaseFare.Amount, o.Bonus.Amount, o.TotalEarnings.Amount,
			o.DistanceToPickupKm, o.Score, breakdown, o.PriorityRank,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Offer, error) {
	row := s.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM match_offers WHERE id = $1`, string(id))
	o, err := scanOffer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

func (s *Store) ListByRide(ctx context.Context, rideID types.ID) ([]*Offer, error) {
	return s.list(ctx, `
		SELECT `+offerColumns+` FROM match_offers
		WHERE ride_id = $1 ORDER BY priority_rank`, string(rideID))
}

// ListPendingByDriver returns the driver's open offers, best rank first.
// Offers past expiry are excluded; their rows are settled lazily on respond.
func (s *Store) ListPendingByDriver(ctx context.Context, driverID types.ID, now time.Time) ([]*Offer, error) {
	return s.list(ctx, `
		SELECT `+offerColumns+` FROM match_offers
		WHERE driver_id = $1 AND status = 'pending' AND expires_at > $2
		ORDER BY priority_rank, offered_at`, string(driverID), now)
}

func (s *Store) list(ctx context.Context, sql string, args ...any) ([]*Offer, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) MarkExpired(ctx context.Context, id types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE match_offers SET status = 'expired', responded_at = NOW()
		WHERE id = $1 AND status = 'pending'`, string(id))
	return err
}

func (s *Store) Decline(ctx context.Context, id types.ID, reason string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE match_offers
		SET status = 'declined', decline_reason = $1, responded_at = NOW()
		WHERE id = $2 AND status = 'pending'`,
		reason, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountLivePending counts offers for the ride that still await a response.
func (s *Store) CountLivePending(ctx context.Context, rideID types.ID, now time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM match_offers
		WHERE ride_id = $1 AND status = 'pending' AND expires_at > $2`,
		string(rideID), now,
	).Scan(&n)
	return n, err
}

// OfferedDriverIDs lists every driver who ever held an offer for the ride,
// regardless of outcome. Re-batches must not re-invite them.
func (s *Store) OfferedDriverIDs(ctx context.Context, rideID types.ID) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT driver_id FROM match_offers WHERE ride_id = $1`, string(rideID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	return ids, rows.Err()
}

// AcceptOffer settles an acceptance atomically: the ride row is locked, and
// either this offer wins (ride assigned, sibling offers withdrawn) or the
// ride was already taken and the offer expires. The boolean reports the win.
func (s *Store) AcceptOffer(ctx context.Context, offerID, rideID, driverID, vehicleID types.ID) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var rideStatus string
	err = tx.QueryRow(ctx, `
		SELECT status FROM ride_requests WHERE id = $1 FOR UPDATE`, string(rideID),
	).Scan(&rideStatus)
	if err != nil {
		return false, err
	}

	if rideStatus != "pending" {
		if _, err := tx.Exec(ctx, `
			UPDATE match_offers SET status = 'expired', responded_at = NOW()
			WHERE id = $1 AND status = 'pending'`, string(offerID)); err != nil {
			return false, err
		}
		return false, tx.Commit(ctx)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE match_offers SET status = 'accepted', responded_at = NOW()
		WHERE id = $1 AND status = 'pending'`, string(offerID))
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE ride_requests
		SET status = 'driver_assigned',
		    status_version = status_version + 1,
		    driver_id = $1, vehicle_id = $2, updated_at = NOW()
		WHERE id = $3`,
		string(driverID), string(vehicleID), string(rideID)); err != nil {
		return false, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE match_offers SET status = 'withdrawn', responded_at = NOW()
		WHERE ride_id = $1 AND id <> $2 AND status = 'pending'`,
		string(rideID), string(offerID)); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

func scanOffer(row pgx.Row) (*Offer, error) {
	var o Offer
	var status string
	var breakdown []byte
	var base, bonus, total int64
	var declineReason *string
	err := row.Scan(
		&o.ID, &o.RideID, &o.DriverID, &status, &o.OfferedAt, &o.ExpiresAt, &o.RespondedAt,
		&base, &bonus, &total,
		&o.DistanceToPickupKm, &o.Score, &breakdown, &o.PriorityRank, &declineReason,
	)
	if err != nil {
		return nil, err
	}
	o.Status = OfferStatus(status)
	o.BaseFare = types.EUR(base)
	o.Bonus = types.EUR(bonus)
	o.TotalEarnings = types.EUR(total)
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &o.Breakdown); err != nil {
			return nil, err
		}
	}
	if declineReason != nil {
		o.DeclineReason = *declineReason
	}
	return &o, nil
}
