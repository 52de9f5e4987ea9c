package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/booking-orders/internal/domain/catalog"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"expected %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func plainService(id, cost, minutes string) catalog.Service {
	return catalog.Service{
		ID:           id,
		Cost:         dec(cost),
		TimeDuration: dec(minutes),
		RelationType: catalog.RelationPlain,
	}
}

func flatExtra(id, price, minutes string) catalog.Extra {
	return catalog.Extra{ID: id, Price: dec(price), Duration: dec(minutes)}
}

func deepExtra(id, price, factor string) catalog.Extra {
	return catalog.Extra{ID: id, Price: dec(price), Duration: dec("60"), IsDeepCleaning: true, PriceMultiplier: dec(factor)}
}

func superDeepExtra(id, price, factor string) catalog.Extra {
	return catalog.Extra{ID: id, Price: dec(price), Duration: dec("90"), IsSuperDeepCleaning: true, PriceMultiplier: dec(factor)}
}

func svcItem(e catalog.Service, quantity int) ServiceItem {
	return ServiceItem{Line: Line{CatalogID: e.ID, Quantity: quantity}, Entry: e}
}

func extraItem(e catalog.Extra, quantity int, hours string) ExtraItem {
	return ExtraItem{Line: Line{CatalogID: e.ID, Quantity: quantity, Hours: dec(hours)}, Entry: e}
}
