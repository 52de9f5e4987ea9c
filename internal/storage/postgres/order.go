package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/booking-orders/internal/domain/catalog"
	"github.com/xenking/booking-orders/internal/domain/giftcard"
	"github.com/xenking/booking-orders/internal/domain/order"
)

const (
	orderColumns = `id, status, service_date, sub_total, tax, tips, company_development_tips, total,
		discount_amount, subscription_discount_amount, gift_card_code, gift_card_amount_used,
		total_duration, maids_count, is_paid, updated_at`

	getOrderSQL    = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	lockOrderSQL   = getOrderSQL + ` FOR UPDATE`
	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	updateOrderSQL = `UPDATE orders SET
			sub_total = $2, tax = $3, total = $4, gift_card_amount_used = $5,
			total_duration = $6, maids_count = $7, is_paid = $8, updated_at = $9
		WHERE id = $1`

	orderServicesSQL = `SELECT service_id, group_id, relation_type, quantity, hours, cost, duration, billable
		FROM order_services WHERE order_id = $1 ORDER BY position`
	orderExtrasSQL = `SELECT extra_id, quantity, hours, cost, duration, billable
		FROM order_extras WHERE order_id = $1 ORDER BY position`

	deleteOrderServicesSQL = `DELETE FROM order_services WHERE order_id = $1`
	deleteOrderExtrasSQL   = `DELETE FROM order_extras WHERE order_id = $1`
	insertOrderServiceSQL  = `INSERT INTO order_services
		(order_id, position, service_id, group_id, relation_type, quantity, hours, cost, duration, billable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	insertOrderExtraSQL = `INSERT INTO order_extras
		(order_id, position, extra_id, quantity, hours, cost, duration, billable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertHistorySQL = `INSERT INTO order_update_history (
			id, order_id, actor_id,
			original_sub_total, new_sub_total, original_tax, new_tax,
			original_tips, new_tips, original_company_development_tips, new_company_development_tips,
			original_total, new_total, original_gift_card_amount_used, new_gift_card_amount_used,
			original_total_duration, new_total_duration, additional_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	historyByOrderSQL = `SELECT id, order_id, actor_id,
			original_sub_total, new_sub_total, original_tax, new_tax,
			original_tips, new_tips, original_company_development_tips, new_company_development_tips,
			original_total, new_total, original_gift_card_amount_used, new_gift_card_amount_used,
			original_total_duration, new_total_duration, additional_amount, created_at
		FROM order_update_history WHERE order_id = $1 ORDER BY created_at, id`
)

var (
	_ order.Store = (*OrderStore)(nil)
	_ order.Tx    = (*orderTx)(nil)
)

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Get loads an order and its lines without locking.
func (s *OrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, s.pool, getOrderSQL, id)
}

// GiftCardByCode loads a gift card without locking.
func (s *OrderStore) GiftCardByCode(ctx context.Context, code string) (*giftcard.Card, error) {
	return getGiftCard(ctx, s.pool, getGiftCardSQL, code)
}

// GiftCardUsage returns the ledger entries of an order for a card.
func (s *OrderStore) GiftCardUsage(ctx context.Context, orderID, giftCardID string) ([]giftcard.UsageEntry, error) {
	return listGiftCardUsage(ctx, s.pool, orderID, giftCardID)
}

// History returns the update history of an order, oldest first.
func (s *OrderStore) History(ctx context.Context, orderID string) ([]order.UpdateHistory, error) {
	rows, err := s.pool.Query(ctx, historyByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting history of order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanHistory)
}

// InTx runs fn in a read-committed transaction. Row locks taken through the
// order.Tx are released on commit or rollback.
func (s *OrderStore) InTx(ctx context.Context, fn func(tx order.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&orderTx{tx: tx})
	})
}

// Create inserts a new order together with its lines.
func (s *OrderStore) Create(ctx context.Context, o *order.Order) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createOrderSQL,
			o.ID, string(o.Status), o.ServiceDate, o.SubTotal, o.Tax, o.Tips, o.CompanyDevelopmentTips, o.Total,
			o.DiscountAmount, o.SubscriptionDiscountAmount, o.GiftCardCode, o.GiftCardAmountUsed,
			o.TotalDuration, o.MaidsCount, o.IsPaid, o.UpdatedAt,
		); err != nil {
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}
		return insertLines(ctx, tx, o.ID, o.Services, o.Extras)
	})
}

// orderTx implements order.Tx on a single pgx transaction.
type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) LockOrder(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, t.tx, lockOrderSQL, id)
}

func (t *orderTx) LockGiftCard(ctx context.Context, code string) (*giftcard.Card, error) {
	return getGiftCard(ctx, t.tx, lockGiftCardSQL, code)
}

func (t *orderTx) GiftCardUsage(ctx context.Context, orderID, giftCardID string) ([]giftcard.UsageEntry, error) {
	return listGiftCardUsage(ctx, t.tx, orderID, giftCardID)
}

func (t *orderTx) ReplaceLines(ctx context.Context, orderID string, services []order.ServiceLine, extras []order.ExtraLine) error {
	if _, err := t.tx.Exec(ctx, deleteOrderServicesSQL, orderID); err != nil {
		return fmt.Errorf("deleting services of order %q: %w", orderID, err)
	}
	if _, err := t.tx.Exec(ctx, deleteOrderExtrasSQL, orderID); err != nil {
		return fmt.Errorf("deleting extras of order %q: %w", orderID, err)
	}
	return insertLines(ctx, t.tx, orderID, services, extras)
}

func (t *orderTx) UpdateOrder(ctx context.Context, o *order.Order) error {
	tag, err := t.tx.Exec(ctx, updateOrderSQL,
		o.ID, o.SubTotal, o.Tax, o.Total, o.GiftCardAmountUsed,
		o.TotalDuration, o.MaidsCount, o.IsPaid, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func (t *orderTx) UpdateGiftCardBalance(ctx context.Context, giftCardID string, balance decimal.Decimal) error {
	if _, err := t.tx.Exec(ctx, updateGiftCardBalanceSQL, giftCardID, balance); err != nil {
		return fmt.Errorf("updating gift card %q balance: %w", giftCardID, err)
	}
	return nil
}

func (t *orderTx) AppendGiftCardUsage(ctx context.Context, e giftcard.UsageEntry) error {
	if _, err := t.tx.Exec(ctx, insertGiftCardUsageSQL,
		e.ID, e.OrderID, e.GiftCardID, e.Delta, e.AmountUsed, e.BalanceAfterUsage, e.CreatedAt,
	); err != nil {
		return fmt.Errorf("appending gift card usage for order %q: %w", e.OrderID, err)
	}
	return nil
}

func (t *orderTx) InsertHistory(ctx context.Context, h order.UpdateHistory) error {
	if _, err := t.tx.Exec(ctx, insertHistorySQL,
		h.ID, h.OrderID, h.ActorID,
		h.OriginalSubTotal, h.NewSubTotal, h.OriginalTax, h.NewTax,
		h.OriginalTips, h.NewTips, h.OriginalCompanyDevelopmentTips, h.NewCompanyDevelopmentTips,
		h.OriginalTotal, h.NewTotal, h.OriginalGiftCardAmountUsed, h.NewGiftCardAmountUsed,
		h.OriginalTotalDuration, h.NewTotalDuration, h.AdditionalAmount, h.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting history for order %q: %w", h.OrderID, err)
	}
	return nil
}

func getOrder(ctx context.Context, q querier, query, id string) (*order.Order, error) {
	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	rows, err = q.Query(ctx, orderServicesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting services of order %q: %w", id, err)
	}
	if o.Services, err = pgx.CollectRows(rows, scanServiceLine); err != nil {
		return nil, fmt.Errorf("getting services of order %q: %w", id, err)
	}

	rows, err = q.Query(ctx, orderExtrasSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting extras of order %q: %w", id, err)
	}
	if o.Extras, err = pgx.CollectRows(rows, scanExtraLine); err != nil {
		return nil, fmt.Errorf("getting extras of order %q: %w", id, err)
	}

	return &o, nil
}

func insertLines(ctx context.Context, q querier, orderID string, services []order.ServiceLine, extras []order.ExtraLine) error {
	if len(services)+len(extras) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for i, l := range services {
		b.Queue(insertOrderServiceSQL, orderID, i, l.ServiceID, l.GroupID, string(l.RelationType),
			l.Quantity, l.Hours, l.Cost, l.Duration, l.Billable)
	}
	for i, l := range extras {
		b.Queue(insertOrderExtraSQL, orderID, i, l.ExtraID, l.Quantity, l.Hours, l.Cost, l.Duration, l.Billable)
	}
	if err := q.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("inserting lines of order %q: %w", orderID, err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &status, &o.ServiceDate, &o.SubTotal, &o.Tax, &o.Tips, &o.CompanyDevelopmentTips, &o.Total,
		&o.DiscountAmount, &o.SubscriptionDiscountAmount, &o.GiftCardCode, &o.GiftCardAmountUsed,
		&o.TotalDuration, &o.MaidsCount, &o.IsPaid, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}

func scanServiceLine(row pgx.CollectableRow) (order.ServiceLine, error) {
	var (
		l        order.ServiceLine
		relation string
	)
	err := row.Scan(&l.ServiceID, &l.GroupID, &relation, &l.Quantity, &l.Hours, &l.Cost, &l.Duration, &l.Billable)
	l.RelationType = catalog.RelationType(relation)
	return l, err
}

func scanExtraLine(row pgx.CollectableRow) (order.ExtraLine, error) {
	var l order.ExtraLine
	err := row.Scan(&l.ExtraID, &l.Quantity, &l.Hours, &l.Cost, &l.Duration, &l.Billable)
	return l, err
}

func scanHistory(row pgx.CollectableRow) (order.UpdateHistory, error) {
	var h order.UpdateHistory
	err := row.Scan(
		&h.ID, &h.OrderID, &h.ActorID,
		&h.OriginalSubTotal, &h.NewSubTotal, &h.OriginalTax, &h.NewTax,
		&h.OriginalTips, &h.NewTips, &h.OriginalCompanyDevelopmentTips, &h.NewCompanyDevelopmentTips,
		&h.OriginalTotal, &h.NewTotal, &h.OriginalGiftCardAmountUsed, &h.NewGiftCardAmountUsed,
		&h.OriginalTotalDuration, &h.NewTotalDuration, &h.AdditionalAmount, &h.CreatedAt,
	)
	return h, err
}
