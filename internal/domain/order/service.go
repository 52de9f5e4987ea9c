package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/booking-orders/internal/domain/catalog"
	"github.com/xenking/booking-orders/internal/domain/giftcard"
	"github.com/xenking/booking-orders/internal/domain/pricing"
)

// InvalidLineError indicates a selection line with a negative quantity or
// negative hours.
type InvalidLineError struct {
	CatalogID string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("quantity and hours must not be negative for %s", e.CatalogID)
}

// CommitRequest holds the input for committing a new selection.
type CommitRequest struct {
	OrderID   string
	ActorID   string
	Selection Selection
}

// Preview is the outcome of a reconciliation that was not persisted.
type Preview struct {
	// Order is the order as a commit of the same selection would leave it.
	Order *Order
	// OriginalTotal is the total of the order before the edit.
	OriginalTotal       decimal.Decimal
	TotalBeforeGiftCard decimal.Decimal
	AdditionalAmount    decimal.Decimal
	// Version is the UpdatedAt of the order the preview was computed from.
	Version time.Time
}

// CommitResult is a committed edit. AdditionalAmount is the value recorded in
// the order's update history.
type CommitResult struct {
	Order            *Order
	OriginalTotal    decimal.Decimal
	AdditionalAmount decimal.Decimal
}

// Service reconciles order totals against a new selection.
type Service struct {
	catalog  catalog.Repository
	store    Store
	notifier Notifier
	rules    pricing.Rules
	now      func() time.Time

	reconciliations metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the post-commit notifier. Defaults to NopNotifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides time.Now for history and ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMeterProvider sets the provider for the reconciliation counter.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		if c, err := mp.Meter("booking/order").Int64Counter("booking.reconciliations",
			metric.WithDescription("Order reconciliations by outcome"),
		); err == nil {
			s.reconciliations = c
		}
	}
}

// NewService creates an order Service with the required dependencies.
func NewService(catalogRepo catalog.Repository, store Store, rules pricing.Rules, opts ...Option) *Service {
	s := &Service{
		catalog:  catalogRepo,
		store:    store,
		notifier: NopNotifier{},
		rules:    rules,
		now:      time.Now,
	}
	WithMeterProvider(noop.NewMeterProvider())(s)
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the persisted order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.store.Get(ctx, id)
}

// Preview runs the full reconciliation for sel without writing anything.
func (s *Service) Preview(ctx context.Context, orderID string, sel Selection) (*Preview, error) {
	if err := validate(sel); err != nil {
		return nil, err
	}

	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o.Status.Terminal() {
		return nil, finalized(o)
	}

	services, extras, err := s.resolve(ctx, sel)
	if err != nil {
		return nil, err
	}

	var card *pricing.GiftCardState
	if o.GiftCardCode != "" {
		gc, err := s.store.GiftCardByCode(ctx, o.GiftCardCode)
		if err != nil {
			return nil, fmt.Errorf("get gift card: %w", err)
		}
		entries, err := s.store.GiftCardUsage(ctx, o.ID, gc.ID)
		if err != nil {
			return nil, fmt.Errorf("get gift card usage: %w", err)
		}
		card, _ = cardState(o, gc, entries)
	}

	res, err := s.reconcile(ctx, o, sel, services, extras, card)
	if err != nil {
		return nil, err
	}
	s.count(ctx, "preview")

	return &Preview{
		Order:               apply(o, services, extras, res, s.now()),
		OriginalTotal:       o.Total,
		TotalBeforeGiftCard: res.Totals.TotalBeforeGiftCard,
		AdditionalAmount:    res.AdditionalAmount,
		Version:             o.UpdatedAt,
	}, nil
}

// Commit reconciles and persists the selection in one transaction. The order
// row and then the gift-card row are locked before anything is computed, so
// concurrent commits sharing a card serialize. Domain errors are returned
// before any write.
func (s *Service) Commit(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	if err := validate(req.Selection); err != nil {
		return nil, err
	}

	services, extras, err := s.resolve(ctx, req.Selection)
	if err != nil {
		return nil, err
	}

	var (
		updated    *Order
		original   decimal.Decimal
		additional decimal.Decimal
	)
	err = s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, req.OrderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if o.Status.Terminal() {
			return finalized(o)
		}

		var (
			gc      *giftcard.Card
			card    *pricing.GiftCardState
			opening *giftcard.UsageEntry
		)
		if o.GiftCardCode != "" {
			gc, err = tx.LockGiftCard(ctx, o.GiftCardCode)
			if err != nil {
				return fmt.Errorf("lock gift card: %w", err)
			}
			entries, err := tx.GiftCardUsage(ctx, o.ID, gc.ID)
			if err != nil {
				return fmt.Errorf("get gift card usage: %w", err)
			}
			card, opening = cardState(o, gc, entries)
		}

		res, err := s.reconcile(ctx, o, req.Selection, services, extras, card)
		if err != nil {
			return err
		}
		if err := pricing.CheckMonotonic(o.Total, res.Total); err != nil {
			return err
		}

		now := s.now()
		next := apply(o, services, extras, res, now)

		if err := tx.ReplaceLines(ctx, o.ID, next.Services, next.Extras); err != nil {
			return fmt.Errorf("replace lines: %w", err)
		}
		if err := tx.UpdateOrder(ctx, next); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if res.GiftCard.Changed {
			if err := tx.UpdateGiftCardBalance(ctx, gc.ID, res.GiftCard.BalanceAfter); err != nil {
				return fmt.Errorf("update gift card balance: %w", err)
			}
			if opening != nil {
				opening.ID = uuid.New().String()
				if err := tx.AppendGiftCardUsage(ctx, *opening); err != nil {
					return fmt.Errorf("append opening gift card usage: %w", err)
				}
			}
			if err := tx.AppendGiftCardUsage(ctx, giftcard.UsageEntry{
				ID:                uuid.New().String(),
				OrderID:           o.ID,
				GiftCardID:        gc.ID,
				Delta:             res.GiftCard.Delta,
				AmountUsed:        res.GiftCard.AmountUsed,
				BalanceAfterUsage: res.GiftCard.BalanceAfter,
				CreatedAt:         now,
			}); err != nil {
				return fmt.Errorf("append gift card usage: %w", err)
			}
		}
		if err := tx.InsertHistory(ctx, NewUpdateHistory(o, next, res.AdditionalAmount, req.ActorID, now)); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}

		updated, original, additional = next, o.Total, res.AdditionalAmount
		return nil
	})
	if err != nil {
		s.count(ctx, outcome(err))
		return nil, err
	}
	s.count(ctx, "committed")

	lg := zctx.From(ctx)
	lg.Info("Order reconciled",
		zap.String("order_id", updated.ID),
		zap.String("actor_id", req.ActorID),
		zap.Stringer("total", updated.Total),
		zap.Stringer("additional_amount", additional),
	)

	if err := s.notifier.OrderUpdated(ctx, UpdatedEvent{
		OrderID:          updated.ID,
		ActorID:          req.ActorID,
		Total:            updated.Total,
		AdditionalAmount: additional,
		TotalDuration:    updated.TotalDuration,
		UpdatedAt:        updated.UpdatedAt,
	}); err != nil {
		lg.Warn("Order update notification failed",
			zap.String("order_id", updated.ID),
			zap.Error(err),
		)
	}

	return &CommitResult{
		Order:            updated,
		OriginalTotal:    original,
		AdditionalAmount: additional,
	}, nil
}

func (s *Service) reconcile(
	ctx context.Context,
	o *Order,
	sel Selection,
	services []pricing.ServiceItem,
	extras []pricing.ExtraItem,
	card *pricing.GiftCardState,
) (pricing.Result, error) {
	res, err := pricing.Reconcile(pricing.Input{
		Services:         services,
		Extras:           extras,
		PersistedHours:   o.persistedHours(),
		DeclaredDuration: sel.DeclaredDuration,
		Adjustments: pricing.Adjustments{
			DiscountAmount:             o.DiscountAmount,
			SubscriptionDiscountAmount: o.SubscriptionDiscountAmount,
			Tips:                       o.Tips,
			CompanyDevelopmentTips:     o.CompanyDevelopmentTips,
		},
		OriginalTotal: o.Total,
		GiftCard:      card,
		Rules:         s.rules,
	})
	if err != nil {
		return pricing.Result{}, fmt.Errorf("reconcile order %s: %w", o.ID, err)
	}
	logStages(zctx.From(ctx).With(zap.String("order_id", o.ID)), res)
	return res, nil
}

func logStages(lg *zap.Logger, res pricing.Result) {
	lg.Debug("Resolved multiplier",
		zap.String("stage", "multiplier"),
		zap.Stringer("factor", res.Multiplier.Factor),
		zap.Stringer("flat_fee", res.Multiplier.FlatFee),
		zap.String("source", string(res.Multiplier.Source)),
	)
	lg.Debug("Priced lines",
		zap.String("stage", "lines"),
		zap.Int("services", len(res.ServiceLines)),
		zap.Int("extras", len(res.ExtraLines)),
		zap.Stringer("subtotal", res.Totals.SubTotal),
	)
	lg.Debug("Reconciled duration",
		zap.String("stage", "duration"),
		zap.Stringer("computed", res.Duration.Computed),
		zap.Stringer("declared", res.Duration.Declared),
		zap.Stringer("total", res.Duration.Total),
		zap.Bool("used_declared", res.Duration.UsedDeclared),
		zap.Bool("floored", res.Duration.Floored),
	)
	lg.Debug("Assembled totals",
		zap.String("stage", "totals"),
		zap.Stringer("discounted_subtotal", res.Totals.DiscountedSubTotal),
		zap.Stringer("tax", res.Totals.Tax),
		zap.Stringer("total_before_gift_card", res.Totals.TotalBeforeGiftCard),
	)
	if res.GiftCard.Applied {
		lg.Debug("Reconciled gift card",
			zap.String("stage", "gift_card"),
			zap.Stringer("amount_used", res.GiftCard.AmountUsed),
			zap.Stringer("delta", res.GiftCard.Delta),
			zap.Stringer("balance_after", res.GiftCard.BalanceAfter),
			zap.Bool("changed", res.GiftCard.Changed),
		)
	}
	lg.Debug("Computed additional amount",
		zap.String("stage", "guard"),
		zap.Stringer("total", res.Total),
		zap.Stringer("additional_amount", res.AdditionalAmount),
	)
}

// resolve loads the catalog entries of every selection line. Both catalogs
// are queried concurrently.
func (s *Service) resolve(ctx context.Context, sel Selection) ([]pricing.ServiceItem, []pricing.ExtraItem, error) {
	var (
		services []catalog.Service
		extras   []catalog.Extra
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		services, err = s.catalog.ServicesByIDs(gctx, lineIDs(sel.Services))
		if err != nil {
			return fmt.Errorf("get services: %w", err)
		}
		return nil
	})
	if len(sel.Extras) > 0 {
		g.Go(func() error {
			var err error
			extras, err = s.catalog.ExtrasByIDs(gctx, lineIDs(sel.Extras))
			if err != nil {
				return fmt.Errorf("get extra services: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	serviceByID := make(map[string]catalog.Service, len(services))
	for _, e := range services {
		serviceByID[e.ID] = e
	}
	extraByID := make(map[string]catalog.Extra, len(extras))
	for _, e := range extras {
		extraByID[e.ID] = e
	}

	serviceItems := make([]pricing.ServiceItem, 0, len(sel.Services))
	for _, l := range sel.Services {
		e, ok := serviceByID[l.CatalogID]
		if !ok {
			return nil, nil, &catalog.NotFoundError{Kind: catalog.KindService, ID: l.CatalogID}
		}
		serviceItems = append(serviceItems, pricing.ServiceItem{Line: toLine(l), Entry: e})
	}
	extraItems := make([]pricing.ExtraItem, 0, len(sel.Extras))
	for _, l := range sel.Extras {
		e, ok := extraByID[l.CatalogID]
		if !ok {
			return nil, nil, &catalog.NotFoundError{Kind: catalog.KindExtra, ID: l.CatalogID}
		}
		extraItems = append(extraItems, pricing.ExtraItem{Line: toLine(l), Entry: e})
	}

	return serviceItems, extraItems, nil
}

func (s *Service) count(ctx context.Context, outcome string) {
	s.reconciliations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func outcome(err error) string {
	var decErr *pricing.TotalDecreaseError
	switch {
	case errors.As(err, &decErr), errors.Is(err, ErrOrderFinalized):
		return "rejected"
	default:
		return "failed"
	}
}

// apply returns a copy of o carrying the reconciled lines and totals.
func apply(o *Order, services []pricing.ServiceItem, extras []pricing.ExtraItem, res pricing.Result, now time.Time) *Order {
	next := *o

	next.Services = make([]ServiceLine, len(services))
	for i, it := range services {
		r := res.ServiceLines[i]
		next.Services[i] = ServiceLine{
			ServiceID:    it.Entry.ID,
			GroupID:      it.Entry.GroupID,
			RelationType: it.Entry.RelationType,
			Quantity:     it.Line.Quantity,
			Hours:        lineHours(it, r),
			Cost:         r.Cost,
			Duration:     r.Duration,
			Billable:     r.Billable,
		}
	}
	next.Extras = make([]ExtraLine, len(extras))
	for i, it := range extras {
		r := res.ExtraLines[i]
		next.Extras[i] = ExtraLine{
			ExtraID:  it.Entry.ID,
			Quantity: it.Line.Quantity,
			Hours:    it.Line.Hours,
			Cost:     r.Cost,
			Duration: r.Duration,
			Billable: r.Billable,
		}
	}

	next.SubTotal = res.Totals.SubTotal.Round(2)
	next.Tax = res.Totals.Tax
	next.Total = res.Total
	next.TotalDuration = res.Duration.Total
	if res.MaidsCount > 0 {
		next.MaidsCount = res.MaidsCount
	}
	if res.GiftCard.Applied {
		next.GiftCardAmountUsed = res.GiftCard.AmountUsed
	}
	// An order that now owes more is no longer fully paid.
	if res.AdditionalAmount.IsPositive() {
		next.IsPaid = false
	}
	next.UpdatedAt = now

	return &next
}

// lineHours is the hours stored on a service line. A cleaner-count line keeps
// the hours it was priced with so the next edit can pair it again.
func lineHours(it pricing.ServiceItem, r pricing.LineResult) decimal.Decimal {
	if it.Entry.RelationType == catalog.RelationCleanerCount {
		return r.Hours
	}
	return it.Line.Hours
}

// cardState derives the order's current reservation from its ledger. Orders
// booked before the ledger existed fall back to the amount on the order; for
// those the returned opening entry records that reservation and must be
// appended before any further entry.
func cardState(o *Order, gc *giftcard.Card, entries []giftcard.UsageEntry) (*pricing.GiftCardState, *giftcard.UsageEntry) {
	state := &pricing.GiftCardState{
		Code:           gc.Code,
		Balance:        gc.CurrentBalance,
		PreviouslyUsed: o.GiftCardAmountUsed,
	}
	if len(entries) > 0 {
		state.PreviouslyUsed = giftcard.CurrentUsage(entries)
		return state, nil
	}
	if !o.GiftCardAmountUsed.IsPositive() {
		return state, nil
	}
	return state, &giftcard.UsageEntry{
		OrderID:           o.ID,
		GiftCardID:        gc.ID,
		Delta:             o.GiftCardAmountUsed,
		AmountUsed:        o.GiftCardAmountUsed,
		BalanceAfterUsage: gc.CurrentBalance,
		CreatedAt:         o.UpdatedAt,
	}
}

func validate(sel Selection) error {
	if len(sel.Services) == 0 {
		return ErrEmptySelection
	}
	for _, lines := range [][]SelectionLine{sel.Services, sel.Extras} {
		for _, l := range lines {
			if l.Quantity < 0 || l.Hours.IsNegative() {
				return &InvalidLineError{CatalogID: l.CatalogID}
			}
		}
	}
	return nil
}

func finalized(o *Order) error {
	return fmt.Errorf("order %s is %s: %w", o.ID, o.Status, ErrOrderFinalized)
}

func lineIDs(lines []SelectionLine) []string {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.CatalogID
	}
	return ids
}

func toLine(l SelectionLine) pricing.Line {
	return pricing.Line{CatalogID: l.CatalogID, Quantity: l.Quantity, Hours: l.Hours}
}
