package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/booking-orders/internal/domain/catalog"
)

// Pairing carries what a paired line needs to know about its group.
type Pairing struct {
	// SiblingHours is the hours count of the group, taken from the submitted
	// hours line or, failing that, the previously persisted hours.
	SiblingHours    decimal.Decimal
	HasSiblingHours bool
	// HasCleanerSibling is set on an hours line whose group also has a
	// cleaner-count line in the same submission.
	HasCleanerSibling bool
}

// PriceServiceLines prices every submitted service line. persistedHours maps a
// catalog group to the hours stored by the previous commit.
func PriceServiceLines(items []ServiceItem, factor decimal.Decimal, persistedHours map[string]decimal.Decimal) []LineResult {
	submittedHours := make(map[string]int)
	cleanerGroups := make(map[string]bool)
	for _, it := range items {
		g := it.Entry.GroupID
		if g == "" {
			continue
		}
		switch it.Entry.RelationType {
		case catalog.RelationHoursCount:
			if _, ok := submittedHours[g]; !ok {
				submittedHours[g] = it.Line.Quantity
			}
		case catalog.RelationCleanerCount:
			cleanerGroups[g] = true
		}
	}

	results := make([]LineResult, len(items))
	for i, it := range items {
		var p Pairing
		if g := it.Entry.GroupID; g != "" {
			switch it.Entry.RelationType {
			case catalog.RelationCleanerCount:
				if h, ok := submittedHours[g]; ok {
					p.SiblingHours, p.HasSiblingHours = qty(h), true
				} else if h, ok := persistedHours[g]; ok {
					p.SiblingHours, p.HasSiblingHours = h, true
				}
			case catalog.RelationHoursCount:
				p.HasCleanerSibling = cleanerGroups[g]
			}
		}
		results[i] = PriceServiceLine(it, factor, p)
	}
	return results
}

// PriceServiceLine prices a single service line under the active multiplier.
func PriceServiceLine(it ServiceItem, factor decimal.Decimal, p Pairing) LineResult {
	e, l := it.Entry, it.Line

	// Studio: zero bedrooms is billed as a flat studio visit.
	if e.ServiceKey == catalog.KeyBedrooms && l.Quantity == 0 {
		return LineResult{
			Cost:     studioCost.Mul(factor),
			Duration: studioDuration,
			Billable: true,
		}
	}

	switch e.RelationType {
	case catalog.RelationCleanerCount:
		hours := l.Hours
		if p.HasSiblingHours {
			hours = p.SiblingHours
		}
		return LineResult{
			Cost:     e.Cost.Mul(factor).Mul(qty(l.Quantity)).Mul(hours),
			Duration: hours.Mul(sixty),
			Hours:    hours,
			Billable: true,
		}
	case catalog.RelationHoursCount:
		if p.HasCleanerSibling {
			// Cost and duration are both carried by the cleaner-count line.
			return LineResult{Cost: zero, Duration: zero}
		}
	}

	q := qty(l.Quantity)
	return LineResult{
		Cost:     e.Cost.Mul(q).Mul(factor),
		Duration: e.TimeDuration.Mul(q),
		Billable: true,
	}
}
