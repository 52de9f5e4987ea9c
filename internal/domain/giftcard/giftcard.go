// Package giftcard models shared gift-card balance pools and their per-order
// usage ledger.
package giftcard

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when an order references an unknown gift-card code.
var ErrNotFound = errors.New("gift card not found")

// Card is a balance pool shared by every order that references its code.
type Card struct {
	ID             string
	Code           string
	CurrentBalance decimal.Decimal
}

// UsageEntry is one append-only ledger row. Delta is the change in the amount
// attributed to the order; AmountUsed is the attributed amount after the entry.
type UsageEntry struct {
	ID                string
	OrderID           string
	GiftCardID        string
	Delta             decimal.Decimal
	AmountUsed        decimal.Decimal
	BalanceAfterUsage decimal.Decimal
	CreatedAt         time.Time
}

// CurrentUsage returns the amount currently attributed to an order, derived
// from its ledger entries.
func CurrentUsage(entries []UsageEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Delta)
	}
	return sum
}

// InsufficientBalanceError reports a pool that cannot cover even the order's
// own prior reservation.
type InsufficientBalanceError struct {
	Code      string
	Balance   decimal.Decimal
	Reserved  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("gift card %s: insufficient balance: balance %s + reserved %s = %s",
		e.Code, e.Balance.StringFixed(2), e.Reserved.StringFixed(2), e.Available.StringFixed(2))
}
