// README: Driver store backed by PostgreSQL plus a Redis GEO index of
// last-known locations.
package driver

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"rideconnect/internal/types"
)

const geoKey = "drivers:locations"

var ErrNotFound = errors.New("driver not found")

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, rdb *redis.Client) *Store {
	return &Store{db: db, redis: rdb}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, rating, total_rides, wheelchair_rides,
		       is_active, application_status, training_completed, assessment_passed,
		       accessibility_training, location_lat, location_lng, updated_at
		FROM drivers
		WHERE id = $1`, string(id),
	)
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// UpdateLocation records a location ping in both Postgres (for the
// bounding-box eligibility query) and the Redis GEO index (for the radius
// pre-filter).
func (s *Store) UpdateLocation(ctx context.Context, id types.ID, pos types.Point) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET location_lat = $1, location_lng = $2, updated_at = NOW()
		WHERE id = $3`,
		pos.Lat, pos.Lng, string(id),
	); err != nil {
		return err
	}
	return s.redis.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

// RemoveLocation drops a driver from the GEO index when they go offline.
func (s *Store) RemoveLocation(ctx context.Context, id types.ID) error {
	return s.redis.ZRem(ctx, geoKey, string(id)).Err()
}

// NearbyIDs returns drivers within radiusKm of a point, nearest first.
func (s *Store) NearbyIDs(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, geoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

// VehicleFor picks the vehicle to assign with an accepted offer: an
// accessible one when the ride requires it, otherwise any active vehicle.
func (s *Store) VehicleFor(ctx context.Context, driverID types.ID, needAccessible bool) (*Vehicle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, driver_id, make, model, license_plate, is_active, is_accessible
		FROM vehicles
		WHERE driver_id = $1 AND is_active
		  AND ($2 = false OR is_accessible)
		ORDER BY is_accessible DESC
		LIMIT 1`,
		string(driverID), needAccessible,
	)
	var v Vehicle
	err := row.Scan(&v.ID, &v.DriverID, &v.Make, &v.Model, &v.LicensePlate, &v.Active, &v.Accessible)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	var lat, lng *float64
	var updatedAt *time.Time
	err := row.Scan(
		&d.ID, &d.Name, &d.Rating, &d.TotalRides, &d.WheelchairRides,
		&d.Active, &d.ApplicationStatus, &d.TrainingCompleted, &d.AssessmentPassed,
		&d.AccessibilityTraining, &lat, &lng, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		d.Location = &types.Point{Lat: *lat, Lng: *lng}
	}
	if updatedAt != nil {
		d.UpdatedAt = *updatedAt
	}
	return &d, nil
}
