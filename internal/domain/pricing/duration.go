package pricing

import "github.com/shopspring/decimal"

// DurationOutcome reports which duration was kept and why.
type DurationOutcome struct {
	Computed decimal.Decimal
	Declared decimal.Decimal
	Total    decimal.Decimal
	// UsedDeclared is true when the caller's value replaced the computed one.
	UsedDeclared bool
	// Floored is true when the floor raised the selected value.
	Floored bool
}

// ReconcileDuration selects the order's total duration in minutes. A declared
// value that differs from the computed one by more than the tolerance is
// trusted, since client-side duration includes presentation rules the engine
// does not replicate. A non-positive declared value means nothing was declared.
func ReconcileDuration(computed, declared decimal.Decimal, r Rules) DurationOutcome {
	out := DurationOutcome{Computed: computed, Declared: declared, Total: computed}

	if declared.IsPositive() && declared.Sub(computed).Abs().GreaterThan(r.DurationTolerance) {
		out.Total = declared
		out.UsedDeclared = true
	}
	if out.Total.LessThan(r.DurationFloor) {
		out.Total = r.DurationFloor
		out.Floored = true
	}
	return out
}
