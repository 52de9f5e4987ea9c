package pricing

import "github.com/shopspring/decimal"

// PriceExtraLine prices one extra-service line. Deep and super-deep lines only
// contribute their base duration here; their price is the multiplier's flat fee.
func PriceExtraLine(it ExtraItem, factor decimal.Decimal) LineResult {
	e, l := it.Entry, it.Line

	if e.IsDeepCleaning || e.IsSuperDeepCleaning {
		return LineResult{Cost: zero, Duration: e.Duration}
	}

	f := factor
	if e.IsSameDayService {
		f = one
	}

	switch {
	case e.HasHours && l.Hours.IsPositive():
		return LineResult{
			Cost:     e.Price.Mul(l.Hours).Mul(f),
			Duration: e.Duration.Mul(l.Hours),
			Billable: true,
		}
	case e.HasQuantity && l.Quantity > 0:
		q := qty(l.Quantity)
		return LineResult{
			Cost:     e.Price.Mul(q).Mul(f),
			Duration: e.Duration.Mul(q),
			Billable: true,
		}
	case !e.HasHours && !e.HasQuantity:
		return LineResult{
			Cost:     e.Price.Mul(f),
			Duration: e.Duration,
			Billable: true,
		}
	default:
		// Sized extra submitted with nothing to size it by.
		return LineResult{Cost: zero, Duration: zero, Billable: true}
	}
}

// PriceExtraLines prices every extra line with the active factor.
func PriceExtraLines(items []ExtraItem, factor decimal.Decimal) []LineResult {
	results := make([]LineResult, len(items))
	for i, it := range items {
		results[i] = PriceExtraLine(it, factor)
	}
	return results
}
