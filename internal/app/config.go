package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/booking-orders/internal/domain/pricing"
)

// Config holds the complete application configuration, loadable from
// environment variables (BOOKING_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string        `usage:"PostgreSQL connection URL (BOOKING_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	EditWindow  time.Duration `default:"48h" usage:"Edits close this long before the service date" flag:"edit-window"`
	Pricing     PricingConfig
	Redis       RedisConfig
	RabbitMQ    RabbitMQConfig
	Stripe      StripeConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// PricingConfig holds the reconciliation constants.
type PricingConfig struct {
	TaxRate           string `default:"0.08875" usage:"Sales tax rate applied to the discounted subtotal" flag:"tax-rate"`
	DurationFloor     int    `default:"60" usage:"Minimum total duration in minutes" flag:"duration-floor"`
	DurationTolerance int    `default:"5" usage:"Minutes a declared duration may differ from the computed one" flag:"duration-tolerance"`
}

// Rules converts the configuration to pricing rules.
func (c PricingConfig) Rules() (pricing.Rules, error) {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return pricing.Rules{}, errors.Wrapf(err, "parse tax rate %q", c.TaxRate)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return pricing.Rules{}, errors.Errorf("tax rate %s out of range [0, 1)", rate)
	}
	if c.DurationFloor < 0 || c.DurationTolerance < 0 {
		return pricing.Rules{}, errors.New("duration floor and tolerance must not be negative")
	}
	return pricing.Rules{
		TaxRate:           rate,
		DurationFloor:     decimal.NewFromInt(int64(c.DurationFloor)),
		DurationTolerance: decimal.NewFromInt(int64(c.DurationTolerance)),
	}, nil
}

// RedisConfig enables the catalog cache when Addr is set.
type RedisConfig struct {
	Addr       string        `default:"" usage:"Redis address for the catalog cache (disabled when empty)" flag:"redis-addr"`
	Password   string        `default:"" usage:"Redis password" flag:"redis-password"`
	DB         int           `default:"0" usage:"Redis database number" flag:"redis-db"`
	CatalogTTL time.Duration `default:"10m" usage:"Base TTL of cached catalog entries" flag:"catalog-ttl"`
}

// RabbitMQConfig enables order update events when URL is set.
type RabbitMQConfig struct {
	URL   string `default:"" usage:"AMQP URL for order update events (disabled when empty)" flag:"rabbitmq-url"`
	Queue string `default:"booking.order-updates" usage:"Queue receiving order update events" flag:"rabbitmq-queue"`
}

// StripeConfig enables the charge endpoint when APIKey is set.
type StripeConfig struct {
	APIKey   string `default:"" usage:"Stripe secret key (BOOKING_STRIPE_APIKEY)" flag:"stripe-api-key"`
	Currency string `default:"usd" usage:"Currency of additional charges" flag:"stripe-currency"`
}

// RateLimitConfig controls the per-agent sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BOOKING",
		Files:     []string{"config.yaml", "/etc/booking/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set BOOKING_DATABASE_URL or DATABASE_URL")
	}
	if _, err := c.Pricing.Rules(); err != nil {
		return errors.Wrap(err, "pricing")
	}
	if c.EditWindow < 0 {
		return errors.New("edit window must not be negative")
	}
	if c.Redis.Addr != "" && c.Redis.CatalogTTL <= 0 {
		return errors.Errorf("redis catalog TTL must be positive, got %s", c.Redis.CatalogTTL)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's BOOKING_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
	if c.Stripe.APIKey == "" {
		c.Stripe.APIKey = os.Getenv("STRIPE_SECRET_KEY")
	}
}
