package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/booking-orders/internal/domain/giftcard"
)

// GiftCardState is the pool and reservation seen by one order.
type GiftCardState struct {
	Code           string
	Balance        decimal.Decimal
	PreviouslyUsed decimal.Decimal
}

// GiftCardOutcome is the reallocation decided for the order.
type GiftCardOutcome struct {
	// Applied is false when no card is attached or nothing was reserved.
	Applied bool
	// Changed is true when the reservation moved by more than a cent and the
	// pool and ledger must be written.
	Changed      bool
	AmountUsed   decimal.Decimal
	Delta        decimal.Decimal
	BalanceAfter decimal.Decimal
	Total        decimal.Decimal
}

// ReconcileGiftCard releases the order's prior reservation back into the pool
// and takes as much of the pool as the new pre-gift-card total needs.
// balance_after = balance + previously_used - amount_used holds exactly.
func ReconcileGiftCard(totalBefore decimal.Decimal, card *GiftCardState) (GiftCardOutcome, error) {
	if card == nil || card.PreviouslyUsed.IsZero() {
		out := GiftCardOutcome{Total: totalBefore, AmountUsed: zero, Delta: zero}
		if card != nil {
			out.BalanceAfter = card.Balance
		}
		return out, nil
	}

	available := card.Balance.Add(card.PreviouslyUsed)
	if available.IsNegative() {
		return GiftCardOutcome{}, &giftcard.InsufficientBalanceError{
			Code:      card.Code,
			Balance:   card.Balance,
			Reserved:  card.PreviouslyUsed,
			Available: available,
		}
	}

	newUse := decimal.Min(available, totalBefore)
	delta := newUse.Sub(card.PreviouslyUsed)

	if delta.Abs().LessThanOrEqual(epsilon) {
		return GiftCardOutcome{
			Applied:      true,
			AmountUsed:   card.PreviouslyUsed,
			Delta:        zero,
			BalanceAfter: card.Balance,
			Total:        totalBefore.Sub(card.PreviouslyUsed),
		}, nil
	}

	return GiftCardOutcome{
		Applied:      true,
		Changed:      true,
		AmountUsed:   newUse,
		Delta:        delta,
		BalanceAfter: available.Sub(newUse),
		Total:        totalBefore.Sub(newUse),
	}, nil
}
