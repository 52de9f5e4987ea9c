// Package pricing recomputes an order's totals from a submitted selection.
//
// Every function in this package is pure: it takes catalog entries and the
// previously committed state as values and returns new values. The preview and
// commit paths of the order service both call Reconcile, so the amount shown to
// a customer before paying is the amount the commit will charge.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/booking-orders/internal/domain/catalog"
)

var (
	zero    = decimal.Zero
	one     = decimal.NewFromInt(1)
	sixty   = decimal.NewFromInt(60)
	epsilon = decimal.RequireFromString("0.01")

	studioCost     = decimal.NewFromInt(10)
	studioDuration = decimal.NewFromInt(20)
)

// Rules holds the configurable constants of the pipeline.
type Rules struct {
	// TaxRate is applied to the discounted subtotal, e.g. 0.08875.
	TaxRate decimal.Decimal
	// DurationFloor is the minimum total duration in minutes.
	DurationFloor decimal.Decimal
	// DurationTolerance is how far, in minutes, the declared duration may
	// drift from the computed one before the declared value wins.
	DurationTolerance decimal.Decimal
}

// DefaultRules returns the rules in force for New York bookings.
func DefaultRules() Rules {
	return Rules{
		TaxRate:           decimal.RequireFromString("0.08875"),
		DurationFloor:     decimal.NewFromInt(60),
		DurationTolerance: decimal.NewFromInt(5),
	}
}

// Line is one submitted selection line.
type Line struct {
	CatalogID string
	Quantity  int
	Hours     decimal.Decimal
}

// ServiceItem is a selection line resolved against the service catalog.
type ServiceItem struct {
	Line  Line
	Entry catalog.Service
}

// ExtraItem is a selection line resolved against the extra-service catalog.
type ExtraItem struct {
	Line  Line
	Entry catalog.Extra
}

// LineResult is the priced outcome of a single line.
type LineResult struct {
	Cost     decimal.Decimal
	Duration decimal.Decimal
	// Hours is the resolved hours of a cleaner-count line, zero otherwise.
	Hours decimal.Decimal
	// Billable reports whether Cost counts towards the subtotal.
	Billable bool
}

func qty(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}

// collapse maps values strictly inside ±0.01 to exactly zero.
func collapse(d decimal.Decimal) decimal.Decimal {
	if d.Abs().LessThan(epsilon) {
		return zero
	}
	return d
}
