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

var ErrTemplateNotFound = errors.New("recurring template not found")

// TemplateStore persists recurring ride templates.
type TemplateStore struct {
	db *pgxpool.Pool
}

func NewTemplateStore(db *pgxpool.Pool) *TemplateStore {
	return &TemplateStore{db: db}
}

func (s *TemplateStore) Create(ctx context.Context, t *RecurringTemplate) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO recurring_templates (
			id, rider_id, pickup_address, dropoff_address, pickup_time_min,
			recurrence, custom_days, start_date, exclusion_dates,
			round_trip, purpose, priority, wheelchair_required,
			assistance_required, waiting_duration_min
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		string(t.ID), string(t.RiderID), t.PickupAddress, t.DropoffAddress, t.PickupTimeMin,
		string(t.Recurrence), t.CustomDays, t.StartDate, t.ExclusionDates,
		t.RoundTrip, t.Purpose, string(t.Priority), t.WheelchairRequired,
		t.AssistanceRequired, t.WaitingDurationMin,
	)
	return err
}

func (s *TemplateStore) Get(ctx context.Context, id types.ID) (*RecurringTemplate, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, rider_id, pickup_address, dropoff_address, pickup_time_min,
		       recurrence, custom_days, start_date, exclusion_dates,
		       round_trip, purpose, priority, wheelchair_required,
		       assistance_required, waiting_duration_min, last_generated_until
		FROM recurring_templates
		WHERE id = $1`, string(id),
	)
	var t RecurringTemplate
	var recurrence, priority string
	err := row.Scan(
		&t.ID, &t.RiderID, &t.PickupAddress, &t.DropoffAddress, &t.PickupTimeMin,
		&recurrence, &t.CustomDays, &t.StartDate, &t.ExclusionDates,
		&t.RoundTrip, &t.Purpose, &priority, &t.WheelchairRequired,
		&t.AssistanceRequired, &t.WaitingDurationMin, &t.LastGeneratedUntil,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Recurrence = RecurrenceType(recurrence)
	t.Priority = pricing.PriorityOf(priority)
	return &t, nil
}

// SetGeneratedUntil records how far ahead bookings exist for the template.
func (s *TemplateStore) SetGeneratedUntil(ctx context.Context, id types.ID, until time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE recurring_templates SET last_generated_until = $1 WHERE id = $2`,
		until, string(id))
	return err
}
