package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/booking-orders/internal/domain/catalog"
	"github.com/xenking/booking-orders/internal/domain/giftcard"
)

// Sentinel errors for order reconciliation.
var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderFinalized = errors.New("order is finalized")
	ErrEmptySelection = errors.New("selection must contain at least one service")
)

// Status is the order lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusDone      Status = "done"
)

// Terminal reports whether the order no longer accepts edits.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusDone
}

// Order is the booking aggregate: its priced totals plus the selection lines
// they were computed from.
type Order struct {
	ID          string
	Status      Status
	ServiceDate time.Time

	SubTotal                   decimal.Decimal
	Tax                        decimal.Decimal
	Tips                       decimal.Decimal
	CompanyDevelopmentTips     decimal.Decimal
	Total                      decimal.Decimal
	DiscountAmount             decimal.Decimal
	SubscriptionDiscountAmount decimal.Decimal

	GiftCardCode       string
	GiftCardAmountUsed decimal.Decimal

	// TotalDuration is in minutes.
	TotalDuration decimal.Decimal
	MaidsCount    int
	IsPaid        bool

	Services  []ServiceLine
	Extras    []ExtraLine
	UpdatedAt time.Time
}

// ServiceLine is a persisted, priced service selection. Group and relation
// are copied from the catalog so a later edit can find the hours of a pair
// without resubmitting it.
type ServiceLine struct {
	ServiceID    string               `json:"service_id"`
	GroupID      string               `json:"group_id,omitempty"`
	RelationType catalog.RelationType `json:"relation_type"`
	Quantity     int                  `json:"quantity"`
	Hours        decimal.Decimal      `json:"hours"`
	Cost         decimal.Decimal      `json:"cost"`
	Duration     decimal.Decimal      `json:"duration"`
	Billable     bool                 `json:"billable"`
}

// ExtraLine is a persisted, priced extra-service selection.
type ExtraLine struct {
	ExtraID  string          `json:"extra_id"`
	Quantity int             `json:"quantity"`
	Hours    decimal.Decimal `json:"hours"`
	Cost     decimal.Decimal `json:"cost"`
	Duration decimal.Decimal `json:"duration"`
	Billable bool            `json:"billable"`
}

// SelectionLine is one caller-submitted catalog reference.
type SelectionLine struct {
	CatalogID string          `json:"id"`
	Quantity  int             `json:"quantity"`
	Hours     decimal.Decimal `json:"hours"`
}

// Selection is the complete set of lines for an order. It replaces the
// previous lines wholesale.
type Selection struct {
	Services []SelectionLine `json:"services"`
	Extras   []SelectionLine `json:"extras"`
	// DeclaredDuration is the caller's own total in minutes; zero when the
	// caller did not compute one.
	DeclaredDuration decimal.Decimal `json:"declared_duration"`
}

// persistedHours maps each paired group to the hours stored on the order. An
// hours line wins over the hours a cleaner-count line was last priced with.
func (o *Order) persistedHours() map[string]decimal.Decimal {
	hours := make(map[string]decimal.Decimal)
	for _, l := range o.Services {
		if l.GroupID == "" {
			continue
		}
		switch l.RelationType {
		case catalog.RelationHoursCount:
			hours[l.GroupID] = decimal.NewFromInt(int64(l.Quantity))
		case catalog.RelationCleanerCount:
			if _, ok := hours[l.GroupID]; !ok && l.Hours.IsPositive() {
				hours[l.GroupID] = l.Hours
			}
		}
	}
	return hours
}

// Store loads orders and opens commit transactions.
type Store interface {
	// Get returns the order with its lines, or ErrOrderNotFound.
	Get(ctx context.Context, id string) (*Order, error)
	// GiftCardByCode returns giftcard.ErrNotFound for an unknown code.
	GiftCardByCode(ctx context.Context, code string) (*giftcard.Card, error)
	// GiftCardUsage returns the ledger entries of an order in creation order.
	GiftCardUsage(ctx context.Context, orderID, giftCardID string) ([]giftcard.UsageEntry, error)
	// InTx runs fn in a single transaction. The transaction is rolled back
	// when fn returns an error.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of one commit. Lock methods hold their row until the
// transaction ends; callers lock the order before the gift card.
type Tx interface {
	LockOrder(ctx context.Context, id string) (*Order, error)
	LockGiftCard(ctx context.Context, code string) (*giftcard.Card, error)
	GiftCardUsage(ctx context.Context, orderID, giftCardID string) ([]giftcard.UsageEntry, error)

	ReplaceLines(ctx context.Context, orderID string, services []ServiceLine, extras []ExtraLine) error
	UpdateOrder(ctx context.Context, o *Order) error
	UpdateGiftCardBalance(ctx context.Context, giftCardID string, balance decimal.Decimal) error
	AppendGiftCardUsage(ctx context.Context, e giftcard.UsageEntry) error
	InsertHistory(ctx context.Context, h UpdateHistory) error
}

// UpdatedEvent is published after a successful commit.
type UpdatedEvent struct {
	OrderID          string          `json:"order_id"`
	ActorID          string          `json:"actor_id"`
	Total            decimal.Decimal `json:"total"`
	AdditionalAmount decimal.Decimal `json:"additional_amount"`
	TotalDuration    decimal.Decimal `json:"total_duration"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Notifier delivers commit notifications to the email and SMS relays.
type Notifier interface {
	OrderUpdated(ctx context.Context, e UpdatedEvent) error
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) OrderUpdated(context.Context, UpdatedEvent) error { return nil }
