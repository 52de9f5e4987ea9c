package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

var hundred = decimal.NewFromInt(100)

type paymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

var _ ChargeCreator = (*StripeGateway)(nil)

// StripeGateway creates Stripe PaymentIntents behind a circuit breaker.
type StripeGateway struct {
	intents  paymentIntentAPI
	currency string
	breaker  *gobreaker.CircuitBreaker[*stripe.PaymentIntent]
}

// NewStripeGateway returns a gateway for the given secret key and currency.
func NewStripeGateway(apiKey, currency string) (*StripeGateway, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("stripe: api key is required")
	}
	sc := client.New(apiKey, nil)
	return newStripeGateway(sc.PaymentIntents, currency), nil
}

func newStripeGateway(intents paymentIntentAPI, currency string) *StripeGateway {
	return &StripeGateway{
		intents:  intents,
		currency: strings.ToLower(currency),
		breaker: gobreaker.NewCircuitBreaker[*stripe.PaymentIntent](gobreaker.Settings{
			Name:        "stripe",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// Card declines and validation errors are the caller's problem,
			// not a sign that Stripe is unavailable.
			IsSuccessful: func(err error) bool {
				var se *stripe.Error
				if errors.As(err, &se) {
					return se.HTTPStatusCode > 0 && se.HTTPStatusCode < 500
				}
				return err == nil
			},
		}),
	}
}

// CreateCharge creates a PaymentIntent for req.Amount. The idempotency key is
// derived from the order and version, so retries never double-charge.
func (g *StripeGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	cents := req.Amount.Mul(hundred).Round(0).IntPart()

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(cents),
		Currency:    stripe.String(g.currency),
		Description: stripe.String(fmt.Sprintf("Additional charge for order %s", req.OrderID)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"order_id":          req.OrderID,
			"actor_id":          req.ActorID,
			"additional_amount": req.Amount.StringFixed(2),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey(req))

	pi, err := g.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return g.intents.New(params)
	})
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent for order %s: %w", req.OrderID, err)
	}

	return &Charge{
		ID:           pi.ID,
		Status:       string(pi.Status),
		Amount:       decimal.New(pi.Amount, -2),
		Currency:     string(pi.Currency),
		ClientSecret: pi.ClientSecret,
	}, nil
}

func idempotencyKey(req ChargeRequest) string {
	return fmt.Sprintf("order-%s-%d-%s", req.OrderID, req.Version.UnixNano(), req.Amount.StringFixed(2))
}
