package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/booking-orders/internal/domain/order"
	"github.com/xenking/booking-orders/internal/domain/pricing"
	"github.com/xenking/booking-orders/internal/payments"
	"github.com/xenking/booking-orders/pkg/httpmiddleware"
)

const actorHeader = httpmiddleware.ActorHeader

var errPaymentsDisabled = errors.New("payment gateway is not configured")

// GetOrder returns the current order snapshot.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newOrderResponse(o))
}

// PreviewSelection prices a selection against the order without saving it.
// A negative additional amount is reported, not rejected.
func (h *Handler) PreviewSelection(w http.ResponseWriter, r *http.Request) {
	sel, err := decodeSelection(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	p, err := h.orders.Preview(r.Context(), chi.URLParam(r, "orderID"), sel)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, previewResponse{
		Order:               newOrderResponse(p.Order),
		OriginalTotal:       p.OriginalTotal,
		TotalBeforeGiftCard: p.TotalBeforeGiftCard,
		AdditionalAmount:    p.AdditionalAmount,
	})
}

// CommitSelection replaces the order's selection and persists the new totals.
func (h *Handler) CommitSelection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	actor, err := actorID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	sel, err := decodeSelection(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	before, err := h.orders.Get(ctx, orderID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.checkEditWindow(before); err != nil {
		respondError(w, r, err)
		return
	}

	res, err := h.orders.Commit(ctx, order.CommitRequest{
		OrderID:   orderID,
		ActorID:   actor,
		Selection: sel,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, commitResponse{
		Order:            newOrderResponse(res.Order),
		OriginalTotal:    res.OriginalTotal,
		AdditionalAmount: res.AdditionalAmount,
	})
}

// CreateCharge previews the selection and opens a gateway charge for the
// additional amount. Nothing is charged when the order does not cost more.
func (h *Handler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	actor, err := actorID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	sel, err := decodeSelection(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	p, err := h.orders.Preview(ctx, orderID, sel)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.checkEditWindow(p.Order); err != nil {
		respondError(w, r, err)
		return
	}
	// A selection the commit would reject cannot be charged either.
	if err := pricing.CheckMonotonic(p.OriginalTotal, p.Order.Total); err != nil {
		respondError(w, r, err)
		return
	}
	if !p.AdditionalAmount.IsPositive() {
		respondJSON(w, http.StatusOK, chargeResponse{AdditionalAmount: p.AdditionalAmount})
		return
	}
	if h.charges == nil {
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{
			Code:    http.StatusServiceUnavailable,
			Message: errPaymentsDisabled.Error(),
		})
		return
	}

	charge, err := h.charges.CreateCharge(ctx, payments.ChargeRequest{
		OrderID: orderID,
		ActorID: actor,
		Amount:  p.AdditionalAmount,
		Version: p.Version,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	zctx.From(ctx).Info("Charge created",
		zap.String("order_id", orderID),
		zap.String("charge_id", charge.ID),
		zap.Stringer("amount", charge.Amount),
	)

	respondJSON(w, http.StatusOK, chargeResponse{
		AdditionalAmount: p.AdditionalAmount,
		Charge: &chargeDTO{
			ID:           charge.ID,
			Status:       charge.Status,
			Amount:       charge.Amount,
			Currency:     charge.Currency,
			ClientSecret: charge.ClientSecret,
		},
	})
}
