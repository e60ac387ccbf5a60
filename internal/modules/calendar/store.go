// README: Calendar store backed by PostgreSQL.
package calendar

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

const entryColumns = `
	id, driver_id, date, start_min, end_min, status, breaks,
	max_rides, current_bookings, preferred_zones, avoid_zones,
	utilization_pct, estimated_earnings_cents, notes, created_at, updated_at`

func (s *Store) Get(ctx context.Context, driverID types.ID, date time.Time) (*Entry, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM driver_calendar
		WHERE driver_id = $1 AND date = $2`,
		string(driverID), dateOnly(date),
	)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// Upsert inserts or rewrites the driver-day entry.
func (s *Store) Upsert(ctx context.Context, e *Entry) error {
	breaks, err := json.Marshal(e.Breaks)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO driver_calendar (
			id, driver_id, date, start_min, end_min, status, breaks,
			max_rides, current_bookings, preferred_zones, avoid_zones,
			utilization_pct, estimated_earnings_cents, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
		ON CONFLICT (driver_id, date) DO UPDATE SET
			start_min = EXCLUDED.start_min,
			end_min = EXCLUDED.end_min,
			status = EXCLUDED.status,
			breaks = EXCLUDED.breaks,
			max_rides = EXCLUDED.max_rides,
			preferred_zones = EXCLUDED.preferred_zones,
			avoid_zones = EXCLUDED.avoid_zones,
			utilization_pct = EXCLUDED.utilization_pct,
			estimated_earnings_cents = EXCLUDED.estimated_earnings_cents,
			notes = EXCLUDED.notes,
			updated_at = NOW()`,
		string(e.ID), string(e.DriverID), dateOnly(e.Date), e.StartMin, e.EndMin, string(e.Status), breaks,
		e.MaxRides, e.CurrentBookings, e.PreferredZones, e.AvoidZones,
		e.UtilizationPct, e.EstimatedEarnings.Amount, e.Notes,
	)
	return err
}

// BookSlot increments the booking count, refusing once the cap is reached.
func (s *Store) BookSlot(ctx context.Context, driverID types.ID, date time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE driver_calendar
		SET current_bookings = current_bookings + 1, updated_at = NOW()
		WHERE driver_id = $1 AND date = $2
		  AND (max_rides = 0 OR current_bookings < max_rides)`,
		string(driverID), dateOnly(date),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, driverID, date); getErr != nil {
			return getErr
		}
		return ErrEntryFull
	}
	return nil
}

// ReleaseSlot decrements the booking count, flooring at zero.
func (s *Store) ReleaseSlot(ctx context.Context, driverID types.ID, date time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE driver_calendar
		SET current_bookings = GREATEST(current_bookings - 1, 0), updated_at = NOW()
		WHERE driver_id = $1 AND date = $2`,
		string(driverID), dateOnly(date),
	)
	return err
}

// UpdateMetrics rewrites the derived utilization and earnings figures.
func (s *Store) UpdateMetrics(ctx context.Context, driverID types.ID, date time.Time, utilizationPct float64, earnings types.Money) error {
	_, err := s.db.Exec(ctx, `
		UPDATE driver_calendar
		SET utilization_pct = $1, estimated_earnings_cents = $2, updated_at = NOW()
		WHERE driver_id = $3 AND date = $4`,
		utilizationPct, earnings.Amount, string(driverID), dateOnly(date),
	)
	return err
}

// ListRange returns entries for [from, to], ordered by date.
func (s *Store) ListRange(ctx context.Context, driverID types.ID, from, to time.Time) ([]*Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM driver_calendar
		WHERE driver_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date`,
		string(driverID), dateOnly(from), dateOnly(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) SaveOptimization(ctx context.Context, o *Optimization) error {
	suggestions, err := json.Marshal(o.Suggestions)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO waiting_time_optimizations (
			id, driver_id, ride_before_id, ride_after_id,
			waiting_min, distance_km, buffer_min,
			efficiency_score, suggestions, needs_reoptimization, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(o.ID), string(o.DriverID), string(o.RideBeforeID), string(o.RideAfterID),
		o.WaitingMin, o.DistanceKm, o.BufferMin,
		o.EfficiencyScore, suggestions, o.NeedsReoptimization, o.CreatedAt,
	)
	return err
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var status string
	var breaks []byte
	var earningsCents int64
	err := row.Scan(
		&e.ID, &e.DriverID, &e.Date, &e.StartMin, &e.EndMin, &status, &breaks,
		&e.MaxRides, &e.CurrentBookings, &e.PreferredZones, &e.AvoidZones,
		&e.UtilizationPct, &earningsCents, &e.Notes, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = Status(status)
	e.EstimatedEarnings = types.EUR(earningsCents)
	if len(breaks) > 0 {
		if err := json.Unmarshal(breaks, &e.Breaks); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
