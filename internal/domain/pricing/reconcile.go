package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/booking-orders/internal/domain/catalog"
)

// Input is everything the pipeline needs for one order.
type Input struct {
	Services []ServiceItem
	Extras   []ExtraItem
	// PersistedHours maps a catalog group to the hours stored by the
	// previous commit, used when the hours line is not resubmitted.
	PersistedHours   map[string]decimal.Decimal
	DeclaredDuration decimal.Decimal
	Adjustments      Adjustments
	// OriginalTotal is the total already collected for the order.
	OriginalTotal decimal.Decimal
	// GiftCard is nil when the order has no card attached.
	GiftCard *GiftCardState
	Rules    Rules
}

// Result is the full outcome of a reconciliation.
type Result struct {
	Multiplier   Multiplier
	ServiceLines []LineResult
	ExtraLines   []LineResult
	Totals       Totals
	Duration     DurationOutcome
	GiftCard     GiftCardOutcome
	Total        decimal.Decimal
	// AdditionalAmount is Total minus OriginalTotal, rounded and collapsed.
	// It is negative only when the edit would lower the total.
	AdditionalAmount decimal.Decimal
	// MaidsCount is the cleaner count of the selection, 0 when no
	// cleaner-count line was submitted.
	MaidsCount int
}

// Reconcile runs the pricing pipeline: multiplier, service lines, extra lines,
// duration, totals, gift card and the additional amount.
func Reconcile(in Input) (Result, error) {
	m := ResolveMultiplier(in.Extras)

	serviceLines := PriceServiceLines(in.Services, m.Factor, in.PersistedHours)
	extraLines := PriceExtraLines(in.Extras, m.Factor)

	subtotal := m.FlatFee
	computed := zero
	for _, r := range serviceLines {
		if r.Billable {
			subtotal = subtotal.Add(r.Cost)
		}
		computed = computed.Add(r.Duration)
	}
	for _, r := range extraLines {
		if r.Billable {
			subtotal = subtotal.Add(r.Cost)
		}
		computed = computed.Add(r.Duration)
	}

	duration := ReconcileDuration(computed, in.DeclaredDuration, in.Rules)
	totals := AssembleTotals(subtotal, in.Adjustments, in.Rules.TaxRate)

	gc, err := ReconcileGiftCard(totals.TotalBeforeGiftCard, in.GiftCard)
	if err != nil {
		return Result{}, err
	}

	maids := 0
	for _, it := range in.Services {
		if it.Entry.RelationType == catalog.RelationCleanerCount {
			maids = it.Line.Quantity
			break
		}
	}

	return Result{
		Multiplier:       m,
		ServiceLines:     serviceLines,
		ExtraLines:       extraLines,
		Totals:           totals,
		Duration:         duration,
		GiftCard:         gc,
		Total:            gc.Total,
		AdditionalAmount: AdditionalAmount(in.OriginalTotal, gc.Total),
		MaidsCount:       maids,
	}, nil
}
