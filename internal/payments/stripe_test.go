package payments

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
)

type mockIntents struct {
	params []*stripe.PaymentIntentParams
	err    error
}

func (m *mockIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	m.params = append(m.params, params)
	if m.err != nil {
		return nil, m.err
	}
	return &stripe.PaymentIntent{
		ID:           "pi_123",
		Amount:       *params.Amount,
		Currency:     stripe.Currency(*params.Currency),
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
		ClientSecret: "pi_123_secret",
	}, nil
}

func chargeRequest(amount string) ChargeRequest {
	return ChargeRequest{
		OrderID: "order-1",
		ActorID: "agent-7",
		Amount:  decimal.RequireFromString(amount),
		Version: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestStripeGateway_CreateCharge(t *testing.T) {
	intents := &mockIntents{}
	g := newStripeGateway(intents, "USD")
	ctx := context.Background()

	charge, err := g.CreateCharge(ctx, chargeRequest("21.77"))
	require.NoError(t, err)

	assert.Equal(t, "pi_123", charge.ID)
	assert.True(t, decimal.RequireFromString("21.77").Equal(charge.Amount))
	assert.Equal(t, "usd", charge.Currency)

	require.Len(t, intents.params, 1)
	p := intents.params[0]
	assert.Equal(t, int64(2177), *p.Amount)
	assert.Equal(t, map[string]string{
		"order_id":          "order-1",
		"actor_id":          "agent-7",
		"additional_amount": "21.77",
	}, p.Metadata)
	assert.Equal(t, ctx, p.Context)
	require.NotNil(t, p.IdempotencyKey)

	_, err = g.CreateCharge(ctx, chargeRequest("21.77"))
	require.NoError(t, err)
	assert.Equal(t, *p.IdempotencyKey, *intents.params[1].IdempotencyKey)
}

func TestStripeGateway_RejectsNonPositiveAmount(t *testing.T) {
	intents := &mockIntents{}
	g := newStripeGateway(intents, "usd")

	for _, amount := range []string{"0", "-5"} {
		_, err := g.CreateCharge(context.Background(), chargeRequest(amount))
		require.ErrorIs(t, err, ErrInvalidAmount)
	}
	assert.Empty(t, intents.params)
}

func TestStripeGateway_BreakerOpensOnOutage(t *testing.T) {
	intents := &mockIntents{err: &stripe.Error{HTTPStatusCode: http.StatusServiceUnavailable, Msg: "unavailable"}}
	g := newStripeGateway(intents, "usd")

	for range 5 {
		_, err := g.CreateCharge(context.Background(), chargeRequest("10"))
		require.Error(t, err)
	}

	_, err := g.CreateCharge(context.Background(), chargeRequest("10"))
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, intents.params, 5)
}

func TestStripeGateway_CardErrorsDoNotTrip(t *testing.T) {
	cardErr := &stripe.Error{HTTPStatusCode: http.StatusPaymentRequired, Code: stripe.ErrorCodeCardDeclined}
	intents := &mockIntents{err: cardErr}
	g := newStripeGateway(intents, "usd")

	for range 7 {
		_, err := g.CreateCharge(context.Background(), chargeRequest("10"))
		var se *stripe.Error
		require.True(t, errors.As(err, &se))
	}
	assert.Len(t, intents.params, 7)
}

func TestNewStripeGateway_RequiresKey(t *testing.T) {
	_, err := NewStripeGateway("  ", "usd")
	require.Error(t, err)
}
