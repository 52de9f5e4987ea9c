package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UpdateHistory is the immutable before/after record written by every commit,
// including commits that change no amount.
type UpdateHistory struct {
	ID      string
	OrderID string
	ActorID string

	OriginalSubTotal               decimal.Decimal
	NewSubTotal                    decimal.Decimal
	OriginalTax                    decimal.Decimal
	NewTax                         decimal.Decimal
	OriginalTips                   decimal.Decimal
	NewTips                        decimal.Decimal
	OriginalCompanyDevelopmentTips decimal.Decimal
	NewCompanyDevelopmentTips      decimal.Decimal
	OriginalTotal                  decimal.Decimal
	NewTotal                       decimal.Decimal
	OriginalGiftCardAmountUsed     decimal.Decimal
	NewGiftCardAmountUsed          decimal.Decimal
	OriginalTotalDuration          decimal.Decimal
	NewTotalDuration               decimal.Decimal

	AdditionalAmount decimal.Decimal
	CreatedAt        time.Time
}

// NewUpdateHistory snapshots an order before and after a commit.
func NewUpdateHistory(before, after *Order, additional decimal.Decimal, actorID string, at time.Time) UpdateHistory {
	return UpdateHistory{
		ID:      uuid.New().String(),
		OrderID: after.ID,
		ActorID: actorID,

		OriginalSubTotal:               before.SubTotal,
		NewSubTotal:                    after.SubTotal,
		OriginalTax:                    before.Tax,
		NewTax:                         after.Tax,
		OriginalTips:                   before.Tips,
		NewTips:                        after.Tips,
		OriginalCompanyDevelopmentTips: before.CompanyDevelopmentTips,
		NewCompanyDevelopmentTips:      after.CompanyDevelopmentTips,
		OriginalTotal:                  before.Total,
		NewTotal:                       after.Total,
		OriginalGiftCardAmountUsed:     before.GiftCardAmountUsed,
		NewGiftCardAmountUsed:          after.GiftCardAmountUsed,
		OriginalTotalDuration:          before.TotalDuration,
		NewTotalDuration:               after.TotalDuration,

		AdditionalAmount: additional,
		CreatedAt:        at,
	}
}
