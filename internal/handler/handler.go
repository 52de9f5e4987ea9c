// Package handler exposes order reconciliation over HTTP.
package handler

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/booking-orders/internal/domain/order"
	"github.com/xenking/booking-orders/internal/payments"
)

// ErrEditWindowClosed is returned when an order is edited too close to its
// service date.
var ErrEditWindowClosed = errors.New("edit window closed")

// Orders is the order service used by the handler.
type Orders interface {
	Get(ctx context.Context, id string) (*order.Order, error)
	Preview(ctx context.Context, orderID string, sel order.Selection) (*order.Preview, error)
	Commit(ctx context.Context, req order.CommitRequest) (*order.CommitResult, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// EditWindow is how long before the service date edits stop being
	// accepted.
	EditWindow time.Duration
}

// Handler serves the order endpoints.
type Handler struct {
	orders     Orders
	charges    payments.ChargeCreator
	editWindow time.Duration
	now        func() time.Time
}

// New constructs a Handler. charges may be nil, in which case the charge
// endpoint answers 503.
func New(cfg Config, orders Orders, charges payments.ChargeCreator) *Handler {
	return &Handler{
		orders:     orders,
		charges:    charges,
		editWindow: cfg.EditWindow,
		now:        time.Now,
	}
}

// Register mounts the order routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/orders/{orderID}", func(r chi.Router) {
		r.Get("/", h.GetOrder)
		r.Post("/preview", h.PreviewSelection)
		r.Put("/selection", h.CommitSelection)
		r.Post("/charges", h.CreateCharge)
	})
}

// checkEditWindow rejects edits of orders whose service starts within the
// edit window.
func (h *Handler) checkEditWindow(o *order.Order) error {
	if h.editWindow <= 0 || o.ServiceDate.IsZero() {
		return nil
	}
	if o.ServiceDate.Sub(h.now()) < h.editWindow {
		return errors.Wrapf(ErrEditWindowClosed, "order %s is serviced at %s", o.ID, o.ServiceDate.Format(time.RFC3339))
	}
	return nil
}
