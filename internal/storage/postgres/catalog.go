package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/booking-orders/internal/domain/catalog"
)

const (
	servicesByIDsSQL = `SELECT id, group_id, cost, time_duration, relation_type, service_key
		FROM services WHERE id = ANY($1)`

	extrasByIDsSQL = `SELECT id, price, duration, has_hours, has_quantity,
		is_deep_cleaning, is_super_deep_cleaning, price_multiplier, is_same_day_service
		FROM extra_services WHERE id = ANY($1)`

	upsertServiceSQL = `INSERT INTO services (id, group_id, cost, time_duration, relation_type, service_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			group_id = EXCLUDED.group_id,
			cost = EXCLUDED.cost,
			time_duration = EXCLUDED.time_duration,
			relation_type = EXCLUDED.relation_type,
			service_key = EXCLUDED.service_key`

	upsertExtraSQL = `INSERT INTO extra_services (id, price, duration, has_hours, has_quantity,
			is_deep_cleaning, is_super_deep_cleaning, price_multiplier, is_same_day_service)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			price = EXCLUDED.price,
			duration = EXCLUDED.duration,
			has_hours = EXCLUDED.has_hours,
			has_quantity = EXCLUDED.has_quantity,
			is_deep_cleaning = EXCLUDED.is_deep_cleaning,
			is_super_deep_cleaning = EXCLUDED.is_super_deep_cleaning,
			price_multiplier = EXCLUDED.price_multiplier,
			is_same_day_service = EXCLUDED.is_same_day_service`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ServicesByIDs returns the service entries matching any of the given IDs.
func (r *CatalogRepository) ServicesByIDs(ctx context.Context, ids []string) ([]catalog.Service, error) {
	rows, err := r.pool.Query(ctx, servicesByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting services by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanService)
}

// ExtrasByIDs returns the extra-service entries matching any of the given IDs.
func (r *CatalogRepository) ExtrasByIDs(ctx context.Context, ids []string) ([]catalog.Extra, error) {
	rows, err := r.pool.Query(ctx, extrasByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting extra services by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanExtra)
}

// UpsertServices writes service entries in one batch.
func (r *CatalogRepository) UpsertServices(ctx context.Context, services []catalog.Service) error {
	b := &pgx.Batch{}
	for _, s := range services {
		b.Queue(upsertServiceSQL, s.ID, s.GroupID, s.Cost, s.TimeDuration, string(s.RelationType), s.ServiceKey)
	}
	if err := r.pool.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("upserting %d services: %w", len(services), err)
	}
	return nil
}

// UpsertExtras writes extra-service entries in one batch.
func (r *CatalogRepository) UpsertExtras(ctx context.Context, extras []catalog.Extra) error {
	b := &pgx.Batch{}
	for _, e := range extras {
		b.Queue(upsertExtraSQL, e.ID, e.Price, e.Duration, e.HasHours, e.HasQuantity,
			e.IsDeepCleaning, e.IsSuperDeepCleaning, e.PriceMultiplier, e.IsSameDayService)
	}
	if err := r.pool.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("upserting %d extra services: %w", len(extras), err)
	}
	return nil
}

func scanService(row pgx.CollectableRow) (catalog.Service, error) {
	var (
		s        catalog.Service
		relation string
	)
	err := row.Scan(&s.ID, &s.GroupID, &s.Cost, &s.TimeDuration, &relation, &s.ServiceKey)
	s.RelationType = catalog.RelationType(relation)
	return s, err
}

func scanExtra(row pgx.CollectableRow) (catalog.Extra, error) {
	var e catalog.Extra
	err := row.Scan(
		&e.ID, &e.Price, &e.Duration, &e.HasHours, &e.HasQuantity,
		&e.IsDeepCleaning, &e.IsSuperDeepCleaning, &e.PriceMultiplier, &e.IsSameDayService,
	)
	return e, err
}
