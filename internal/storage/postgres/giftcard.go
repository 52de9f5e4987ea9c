package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/booking-orders/internal/domain/giftcard"
)

const (
	getGiftCardSQL  = `SELECT id, code, current_balance FROM gift_cards WHERE code = $1`
	lockGiftCardSQL = getGiftCardSQL + ` FOR UPDATE`

	upsertGiftCardSQL = `INSERT INTO gift_cards (id, code, current_balance) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, current_balance = EXCLUDED.current_balance`

	updateGiftCardBalanceSQL = `UPDATE gift_cards SET current_balance = $2 WHERE id = $1`

	insertGiftCardUsageSQL = `INSERT INTO gift_card_usages
		(id, order_id, gift_card_id, delta, amount_used, balance_after_usage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	giftCardUsageSQL = `SELECT id, order_id, gift_card_id, delta, amount_used, balance_after_usage, created_at
		FROM gift_card_usages WHERE order_id = $1 AND gift_card_id = $2 ORDER BY created_at, id`
)

// UpsertGiftCard creates or replaces a gift-card pool.
func (s *OrderStore) UpsertGiftCard(ctx context.Context, c giftcard.Card) error {
	if _, err := s.pool.Exec(ctx, upsertGiftCardSQL, c.ID, c.Code, c.CurrentBalance); err != nil {
		return fmt.Errorf("upserting gift card %q: %w", c.Code, err)
	}
	return nil
}

func getGiftCard(ctx context.Context, q querier, query, code string) (*giftcard.Card, error) {
	rows, err := q.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("getting gift card %q: %w", code, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (giftcard.Card, error) {
		var c giftcard.Card
		err := row.Scan(&c.ID, &c.Code, &c.CurrentBalance)
		return c, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, giftcard.ErrNotFound
		}
		return nil, fmt.Errorf("getting gift card %q: %w", code, err)
	}
	return &c, nil
}

func listGiftCardUsage(ctx context.Context, q querier, orderID, giftCardID string) ([]giftcard.UsageEntry, error) {
	rows, err := q.Query(ctx, giftCardUsageSQL, orderID, giftCardID)
	if err != nil {
		return nil, fmt.Errorf("getting gift card usage of order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (giftcard.UsageEntry, error) {
		var e giftcard.UsageEntry
		err := row.Scan(&e.ID, &e.OrderID, &e.GiftCardID, &e.Delta, &e.AmountUsed, &e.BalanceAfterUsage, &e.CreatedAt)
		return e, err
	})
}
