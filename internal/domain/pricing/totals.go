package pricing

import "github.com/shopspring/decimal"

// Adjustments are the order-level amounts the engine consumes but does not compute.
type Adjustments struct {
	DiscountAmount             decimal.Decimal
	SubscriptionDiscountAmount decimal.Decimal
	Tips                       decimal.Decimal
	CompanyDevelopmentTips     decimal.Decimal
}

// Totals is the pre-gift-card price breakdown.
type Totals struct {
	SubTotal            decimal.Decimal
	DiscountedSubTotal  decimal.Decimal
	Tax                 decimal.Decimal
	TotalBeforeGiftCard decimal.Decimal
}

// AssembleTotals applies discounts, tax and tips to an unrounded subtotal.
// Tax and the total are rounded to cents after summation.
func AssembleTotals(subtotal decimal.Decimal, adj Adjustments, taxRate decimal.Decimal) Totals {
	discounted := floorAtZero(subtotal.Sub(adj.DiscountAmount.Add(adj.SubscriptionDiscountAmount)))
	tax := discounted.Mul(taxRate).Round(2)
	total := discounted.Add(tax).Add(adj.Tips).Add(adj.CompanyDevelopmentTips).Round(2)

	return Totals{
		SubTotal:            subtotal,
		DiscountedSubTotal:  discounted,
		Tax:                 tax,
		TotalBeforeGiftCard: total,
	}
}
