package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TotalDecreaseError rejects an edit that would lower an order's total below
// what was already collected.
type TotalDecreaseError struct {
	Original decimal.Decimal
	New      decimal.Decimal
}

func (e *TotalDecreaseError) Error() string {
	return fmt.Sprintf("total may not decrease: original %s, new %s",
		e.Original.StringFixed(2), e.New.StringFixed(2))
}

// AdditionalAmount returns the rounded amount still owed after an edit.
// Differences within a cent collapse to exactly zero.
func AdditionalAmount(original, updated decimal.Decimal) decimal.Decimal {
	return collapse(updated.Sub(original).Round(2))
}

// CheckMonotonic returns a *TotalDecreaseError when the edit lowers the total.
func CheckMonotonic(original, updated decimal.Decimal) error {
	if AdditionalAmount(original, updated).LessThan(epsilon.Neg()) {
		return &TotalDecreaseError{Original: original, New: updated}
	}
	return nil
}
