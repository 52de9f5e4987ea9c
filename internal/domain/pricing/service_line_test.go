package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/booking-orders/internal/domain/catalog"
)

func pairedServices() (cleaners, hours catalog.Service) {
	cleaners = catalog.Service{
		ID:           "cleaners",
		GroupID:      "hourly",
		Cost:         dec("35"),
		RelationType: catalog.RelationCleanerCount,
	}
	hours = catalog.Service{
		ID:           "hours",
		GroupID:      "hourly",
		Cost:         dec("35"),
		TimeDuration: dec("60"),
		RelationType: catalog.RelationHoursCount,
	}
	return cleaners, hours
}

func TestPriceServiceLine_Studio(t *testing.T) {
	bedrooms := plainService("bedrooms", "30", "45")
	bedrooms.ServiceKey = catalog.KeyBedrooms

	r := PriceServiceLine(svcItem(bedrooms, 0), dec("1.5"), Pairing{})

	assertDecimal(t, "15", r.Cost)
	assertDecimal(t, "20", r.Duration)
	assert.True(t, r.Billable)
}

func TestPriceServiceLine_BedroomsWithQuantityIsPlain(t *testing.T) {
	bedrooms := plainService("bedrooms", "30", "45")
	bedrooms.ServiceKey = catalog.KeyBedrooms

	r := PriceServiceLine(svcItem(bedrooms, 2), dec("1"), Pairing{})

	assertDecimal(t, "60", r.Cost)
	assertDecimal(t, "90", r.Duration)
}

func TestPriceServiceLine_Plain(t *testing.T) {
	r := PriceServiceLine(svcItem(plainService("bathrooms", "25.50", "30"), 3), dec("1.25"), Pairing{})

	assertDecimal(t, "95.625", r.Cost)
	assertDecimal(t, "90", r.Duration)
	assert.True(t, r.Billable)
}

func TestPriceServiceLines_PairedInSubmission(t *testing.T) {
	cleaners, hours := pairedServices()

	results := PriceServiceLines([]ServiceItem{
		svcItem(hours, 3),
		svcItem(cleaners, 2),
	}, dec("1"), nil)
	require.Len(t, results, 2)

	// Hours line is claimed by the pair.
	assertDecimal(t, "0", results[0].Cost)
	assertDecimal(t, "0", results[0].Duration)
	assert.False(t, results[0].Billable)

	// 35 * 2 cleaners * 3 hours, 3h of wall-clock time.
	assertDecimal(t, "210", results[1].Cost)
	assertDecimal(t, "180", results[1].Duration)
	assert.True(t, results[1].Billable)
}

func TestPriceServiceLines_PairedUsesPersistedHours(t *testing.T) {
	cleaners, _ := pairedServices()

	results := PriceServiceLines([]ServiceItem{svcItem(cleaners, 3)}, dec("2"), map[string]decimal.Decimal{"hourly": dec("4")})
	require.Len(t, results, 1)

	assertDecimal(t, "840", results[0].Cost)
	assertDecimal(t, "240", results[0].Duration)
	assertDecimal(t, "4", results[0].Hours)
}

func TestPriceServiceLines_PersistedHoursMayBeFractional(t *testing.T) {
	cleaners, _ := pairedServices()

	results := PriceServiceLines([]ServiceItem{svcItem(cleaners, 2)}, dec("1"), map[string]decimal.Decimal{"hourly": dec("1.5")})

	assertDecimal(t, "105", results[0].Cost)
	assertDecimal(t, "90", results[0].Duration)
	assertDecimal(t, "1.5", results[0].Hours)
}

func TestPriceServiceLines_PairedFallsBackToLineHours(t *testing.T) {
	cleaners, _ := pairedServices()
	item := svcItem(cleaners, 1)
	item.Line.Hours = dec("2.5")

	results := PriceServiceLines([]ServiceItem{item}, dec("1"), nil)

	assertDecimal(t, "87.5", results[0].Cost)
	assertDecimal(t, "150", results[0].Duration)
}

func TestPriceServiceLines_SubmittedHoursBeatPersisted(t *testing.T) {
	cleaners, hours := pairedServices()

	results := PriceServiceLines([]ServiceItem{
		svcItem(cleaners, 1),
		svcItem(hours, 2),
	}, dec("1"), map[string]decimal.Decimal{"hourly": dec("5")})

	assertDecimal(t, "70", results[0].Cost)
	assertDecimal(t, "120", results[0].Duration)
}

func TestPriceServiceLines_HoursWithoutCleanerIsPlain(t *testing.T) {
	_, hours := pairedServices()

	results := PriceServiceLines([]ServiceItem{svcItem(hours, 3)}, dec("1"), nil)

	assertDecimal(t, "105", results[0].Cost)
	assertDecimal(t, "180", results[0].Duration)
	assert.True(t, results[0].Billable)
}

func TestPriceServiceLines_DifferentGroupsDoNotPair(t *testing.T) {
	cleaners, hours := pairedServices()
	hours.GroupID = "other"

	results := PriceServiceLines([]ServiceItem{
		svcItem(cleaners, 2),
		svcItem(hours, 3),
	}, dec("1"), nil)

	assert.True(t, results[1].Billable)
	assertDecimal(t, "105", results[1].Cost)
}
