package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/booking-orders/internal/domain/catalog"
	"github.com/xenking/booking-orders/internal/domain/order"
	"github.com/xenking/booking-orders/internal/handler"
	"github.com/xenking/booking-orders/internal/notify"
	"github.com/xenking/booking-orders/internal/payments"
	"github.com/xenking/booking-orders/internal/storage/postgres"
	"github.com/xenking/booking-orders/internal/storage/redis"
	"github.com/xenking/booking-orders/pkg/health"
	"github.com/xenking/booking-orders/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	rules, err := cfg.Pricing.Rules()
	if err != nil {
		return errors.Wrap(err, "pricing rules")
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Catalog, optionally behind the Redis cache.
	var catalogRepo catalog.Repository = postgres.NewCatalogRepository(pool)
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = client.Close() }()

		cache := redis.NewCatalogCache(client, catalogRepo, cfg.Redis.CatalogTTL)
		healthSvc.AddReadinessCheck("redis", time.Second, health.PingCheck("redis", cache))
		catalogRepo = cache
		lg.Info("Catalog cache enabled", zap.String("redis", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.CatalogTTL))
	}

	opts := []order.Option{order.WithMeterProvider(m.MeterProvider())}
	if cfg.RabbitMQ.URL != "" {
		publisher, err := notify.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			return errors.Wrap(err, "connect rabbitmq")
		}
		defer func() { _ = publisher.Close() }()

		opts = append(opts, order.WithNotifier(publisher))
		lg.Info("Order update events enabled", zap.String("queue", cfg.RabbitMQ.Queue))
	}

	var charges payments.ChargeCreator
	if cfg.Stripe.APIKey != "" {
		gateway, err := payments.NewStripeGateway(cfg.Stripe.APIKey, cfg.Stripe.Currency)
		if err != nil {
			return errors.Wrap(err, "create payment gateway")
		}
		charges = gateway
	} else {
		lg.Warn("Stripe API key is not set, charge requests are disabled")
	}

	orderService := order.NewService(catalogRepo, postgres.NewOrderStore(pool), rules, opts...)
	h := handler.New(handler.Config{EditWindow: cfg.EditWindow}, orderService, charges)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Probes skip rate limiting and access logs.
	router := chi.NewRouter()
	router.Use(
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
	)
	healthSvc.Register(router)
	router.Group(func(r chi.Router) {
		r.Use(
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.Instrument("booking-api", m),
			httpmiddleware.LogRequests(),
		)
		h.Register(r)
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           router,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
