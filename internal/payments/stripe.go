// README: Stripe PaymentIntent flows: hold the fare at booking, capture on
// completion or cancellation fee, release on free cancellation.
package payments

import (
	"context"
	"strings"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"rideconnect/internal/types"
)

// Gateway is the payment surface booking depends on; a no-op stands in when
// no key is configured.
type Gateway interface {
	HoldFare(ctx context.Context, riderRef string, amount types.Money, rideID types.ID) (string, error)
	CaptureFare(ctx context.Context, intentID string, amount types.Money) error
	ReleaseHold(ctx context.Context, intentID string) error
}

// StripeGateway implements Gateway on Stripe PaymentIntents with manual
// capture.
type StripeGateway struct{}

func NewStripeGateway(apiKey string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{}
}

// HoldFare authorizes the estimated fare without capturing it. The returned
// PaymentIntent id is stored with the ride.
func (g *StripeGateway) HoldFare(ctx context.Context, riderRef string, amount types.Money, rideID types.ID) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount.Amount),
		Currency:      stripe.String(strings.ToLower(amount.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Context = ctx
	if riderRef != "" {
		params.Customer = stripe.String(riderRef)
	}
	params.AddMetadata("ride_id", string(rideID))

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// CaptureFare settles the hold. A partial amount captures a cancellation fee
// and releases the remainder.
func (g *StripeGateway) CaptureFare(ctx context.Context, intentID string, amount types.Money) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	if amount.Amount > 0 {
		params.AmountToCapture = stripe.Int64(amount.Amount)
	}
	_, err := paymentintent.Capture(intentID, params)
	return err
}

// ReleaseHold cancels the PaymentIntent, freeing the full authorization.
func (g *StripeGateway) ReleaseHold(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	_, err := paymentintent.Cancel(intentID, params)
	return err
}

// NoopGateway skips payment calls entirely. Used in development and tests.
type NoopGateway struct{}

func (NoopGateway) HoldFare(context.Context, string, types.Money, types.ID) (string, error) {
	return "", nil
}
func (NoopGateway) CaptureFare(context.Context, string, types.Money) error { return nil }
func (NoopGateway) ReleaseHold(context.Context, string) error              { return nil }
