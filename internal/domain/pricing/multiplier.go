package pricing

import "github.com/shopspring/decimal"

// MultiplierSource names the extra line that activated a multiplier.
type MultiplierSource string

const (
	SourceNone           MultiplierSource = ""
	SourceDeepClean      MultiplierSource = "deep_clean"
	SourceSuperDeepClean MultiplierSource = "super_deep_clean"
)

// Multiplier is the single price multiplier active for an order.
type Multiplier struct {
	Factor  decimal.Decimal
	FlatFee decimal.Decimal
	Source  MultiplierSource
	ExtraID string
}

// ResolveMultiplier picks the active multiplier from the extra selection.
// A super-deep-clean line always wins; a deep-clean line is used only when
// no super-deep line is present. Submission order does not matter.
func ResolveMultiplier(extras []ExtraItem) Multiplier {
	m := Multiplier{Factor: one, FlatFee: zero}
	for _, it := range extras {
		e := it.Entry
		if e.IsSuperDeepCleaning {
			return Multiplier{
				Factor:  factorOf(e.PriceMultiplier),
				FlatFee: e.Price,
				Source:  SourceSuperDeepClean,
				ExtraID: e.ID,
			}
		}
		if e.IsDeepCleaning && m.Source == SourceNone {
			m = Multiplier{
				Factor:  factorOf(e.PriceMultiplier),
				FlatFee: e.Price,
				Source:  SourceDeepClean,
				ExtraID: e.ID,
			}
		}
	}
	return m
}

// factorOf treats an unset catalog multiplier as neutral.
func factorOf(d decimal.Decimal) decimal.Decimal {
	if !d.IsPositive() {
		return one
	}
	return d
}
