package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/booking-orders/internal/domain/catalog"
	"github.com/xenking/booking-orders/internal/domain/giftcard"
	"github.com/xenking/booking-orders/internal/domain/order"
	"github.com/xenking/booking-orders/internal/storage/postgres"
)

const (
	demoOrderID    = "demo-order-1"
	demoGiftCardID = "demo-card-1"
	demoGiftCode   = "WELCOME100"
)

type catalogFile struct {
	Services []catalog.Service `json:"services"`
	Extras   []catalog.Extra   `json:"extras"`
}

func main() {
	var (
		databaseURL string
		catalogPath string
		withDemo    bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogPath, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.BoolVar(&withDemo, "demo", true, "also seed a demo gift card and order")
	flag.Parse()

	lg := zap.Must(zap.NewDevelopment())
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, catalogPath, withDemo); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}

	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, catalogPath string, withDemo bool) error {
	lg.Info("Connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, lg, postgres.NewCatalogRepository(pool), catalogPath); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if !withDemo {
		return nil
	}
	if err := seedDemo(ctx, lg, postgres.NewOrderStore(pool)); err != nil {
		return errors.Wrap(err, "seed demo order")
	}
	return nil
}

func seedCatalog(ctx context.Context, lg *zap.Logger, repo *postgres.CatalogRepository, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	if err := repo.UpsertServices(ctx, file.Services); err != nil {
		return err
	}
	if err := repo.UpsertExtras(ctx, file.Extras); err != nil {
		return err
	}

	lg.Info("Upserted catalog",
		zap.String("path", path),
		zap.Int("services", len(file.Services)),
		zap.Int("extras", len(file.Extras)),
	)
	return nil
}

// seedDemo books a standard cleaning a week out, half paid by a gift card
// holding 100 in total.
func seedDemo(ctx context.Context, lg *zap.Logger, store *postgres.OrderStore) error {
	_, err := store.Get(ctx, demoOrderID)
	switch {
	case err == nil:
		lg.Info("Demo order already exists", zap.String("order_id", demoOrderID))
		return nil
	case !errors.Is(err, order.ErrOrderNotFound):
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	used := decimal.NewFromInt(50)
	balance := decimal.NewFromInt(50)

	if err := store.UpsertGiftCard(ctx, giftcard.Card{ID: demoGiftCardID, Code: demoGiftCode, CurrentBalance: balance}); err != nil {
		return err
	}

	o := &order.Order{
		ID:                 demoOrderID,
		Status:             order.StatusActive,
		ServiceDate:        now.Add(7 * 24 * time.Hour),
		SubTotal:           decimal.NewFromInt(100),
		Tax:                decimal.RequireFromString("8.88"),
		Total:              decimal.RequireFromString("58.88"),
		GiftCardCode:       demoGiftCode,
		GiftCardAmountUsed: used,
		TotalDuration:      decimal.NewFromInt(120),
		MaidsCount:         1,
		IsPaid:             true,
		UpdatedAt:          now,
		Services: []order.ServiceLine{{
			ServiceID:    "standard",
			RelationType: catalog.RelationPlain,
			Quantity:     1,
			Hours:        decimal.Zero,
			Cost:         decimal.NewFromInt(100),
			Duration:     decimal.NewFromInt(120),
			Billable:     true,
		}},
	}
	if err := store.Create(ctx, o); err != nil {
		return err
	}

	if err := store.InTx(ctx, func(tx order.Tx) error {
		return tx.AppendGiftCardUsage(ctx, giftcard.UsageEntry{
			ID:                "demo-usage-1",
			OrderID:           demoOrderID,
			GiftCardID:        demoGiftCardID,
			Delta:             used,
			AmountUsed:        used,
			BalanceAfterUsage: balance,
			CreatedAt:         now,
		})
	}); err != nil {
		return errors.Wrap(err, "record gift card usage")
	}

	lg.Info("Seeded demo order",
		zap.String("order_id", demoOrderID),
		zap.String("gift_card", demoGiftCode),
		zap.Stringer("total", o.Total),
	)
	return nil
}
