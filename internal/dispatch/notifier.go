// README: Notification dispatch: contract plus log and fan-out impls.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rideconnect/internal/types"
)

// Event is one notification payload. Type names the occurrence
// (offer_created, driver_assigned, ride_unmatched, ...).
type Event struct {
	Type    string         `json:"type"`
	RideID  types.ID       `json:"ride_id,omitempty"`
	OfferID types.ID       `json:"offer_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

// Notifier delivers events to drivers and riders. Implementations must not
// block indefinitely; callers treat delivery as best-effort.
type Notifier interface {
	NotifyDriver(ctx context.Context, driverID types.ID, ev Event) error
	NotifyRider(ctx context.Context, riderID types.ID, ev Event) error
}

// LogNotifier writes events to the structured log. Used standalone in
// development and as the always-on member of the fan-out.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) NotifyDriver(_ context.Context, driverID types.ID, ev Event) error {
	n.Log.Info("notify driver", "driver_id", driverID, "event", ev.Type, "ride_id", ev.RideID)
	return nil
}

func (n LogNotifier) NotifyRider(_ context.Context, riderID types.ID, ev Event) error {
	n.Log.Info("notify rider", "rider_id", riderID, "event", ev.Type, "ride_id", ev.RideID)
	return nil
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) NotifyDriver(ctx context.Context, driverID types.ID, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyDriver(ctx, driverID, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyRider(ctx context.Context, riderID types.ID, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyRider(ctx, riderID, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
