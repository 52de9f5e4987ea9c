package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/booking-orders/internal/domain/pricing"
)

func TestPricingConfig_Rules(t *testing.T) {
	rules, err := PricingConfig{TaxRate: "0.08875", DurationFloor: 60, DurationTolerance: 5}.Rules()
	require.NoError(t, err)
	want := pricing.DefaultRules()
	assert.True(t, want.TaxRate.Equal(rules.TaxRate))
	assert.True(t, want.DurationFloor.Equal(rules.DurationFloor))
	assert.True(t, want.DurationTolerance.Equal(rules.DurationTolerance))

	rules, err = PricingConfig{TaxRate: "0"}.Rules()
	require.NoError(t, err)
	assert.True(t, rules.TaxRate.Equal(decimal.Zero))

	for _, bad := range []PricingConfig{
		{TaxRate: "eight percent"},
		{TaxRate: "-0.1"},
		{TaxRate: "1"},
		{TaxRate: "0.1", DurationFloor: -1},
	} {
		_, err := bad.Rules()
		assert.Error(t, err, "%+v", bad)
	}
}

func TestConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/booking")
	t.Setenv("PORT", "9090")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")

	cfg := Config{Addr: "0.0.0.0:8080", EditWindow: 48 * time.Hour, Pricing: PricingConfig{TaxRate: "0.08875"}}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://localhost/booking", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
	assert.Equal(t, "sk_test_123", cfg.Stripe.APIKey)
	assert.NoError(t, cfg.validate())
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Pricing: PricingConfig{TaxRate: "0.08875"}}
	assert.ErrorContains(t, cfg.validate(), "database URL is required")

	cfg.DatabaseURL = "postgres://localhost/booking"
	cfg.Pricing.TaxRate = "x"
	assert.ErrorContains(t, cfg.validate(), "pricing")
}

func TestConfig_ValidateCatalogTTL(t *testing.T) {
	cfg := Config{
		DatabaseURL: "postgres://localhost/booking",
		Pricing:     PricingConfig{TaxRate: "0.08875"},
		Redis:       RedisConfig{Addr: "localhost:6379", CatalogTTL: -time.Minute},
	}
	assert.ErrorContains(t, cfg.validate(), "catalog TTL must be positive")

	cfg.Redis.CatalogTTL = 0
	assert.ErrorContains(t, cfg.validate(), "catalog TTL must be positive")

	cfg.Redis.CatalogTTL = 10 * time.Minute
	assert.NoError(t, cfg.validate())

	// Without Redis the TTL is unused.
	cfg.Redis = RedisConfig{CatalogTTL: -time.Minute}
	assert.NoError(t, cfg.validate())
}
