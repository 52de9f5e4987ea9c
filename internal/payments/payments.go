// Package payments creates gateway charges for the additional amount owed
// after an order edit.
package payments

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for a charge of zero or less.
var ErrInvalidAmount = errors.New("charge amount must be positive")

// ChargeRequest is an additional charge for an edited order.
type ChargeRequest struct {
	OrderID string
	ActorID string
	Amount  decimal.Decimal
	// Version identifies the order state the amount was computed from. Two
	// requests for the same order and version are the same charge.
	Version time.Time
}

// Charge is the gateway's record of a created charge.
type Charge struct {
	ID           string
	Status       string
	Amount       decimal.Decimal
	Currency     string
	ClientSecret string
}

// ChargeCreator creates charges on a payment gateway.
type ChargeCreator interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
}
