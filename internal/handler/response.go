package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/xenking/booking-orders/internal/domain/catalog"
	"github.com/xenking/booking-orders/internal/domain/giftcard"
	"github.com/xenking/booking-orders/internal/domain/order"
	"github.com/xenking/booking-orders/internal/domain/pricing"
	"github.com/xenking/booking-orders/internal/payments"
)

const maxBodyBytes = 1 << 20

var errMissingActor = errors.New("X-Actor-ID header is required")

// badRequestError marks a request the handler could not decode.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return "bad request: " + e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type orderResponse struct {
	ID                         string              `json:"id"`
	Status                     order.Status        `json:"status"`
	ServiceDate                time.Time           `json:"service_date"`
	SubTotal                   decimal.Decimal     `json:"sub_total"`
	Tax                        decimal.Decimal     `json:"tax"`
	Tips                       decimal.Decimal     `json:"tips"`
	CompanyDevelopmentTips     decimal.Decimal     `json:"company_development_tips"`
	DiscountAmount             decimal.Decimal     `json:"discount_amount"`
	SubscriptionDiscountAmount decimal.Decimal     `json:"subscription_discount_amount"`
	GiftCardCode               string              `json:"gift_card_code,omitempty"`
	GiftCardAmountUsed         decimal.Decimal     `json:"gift_card_amount_used"`
	Total                      decimal.Decimal     `json:"total"`
	TotalDuration              decimal.Decimal     `json:"total_duration"`
	MaidsCount                 int                 `json:"maids_count"`
	IsPaid                     bool                `json:"is_paid"`
	Services                   []order.ServiceLine `json:"services"`
	Extras                     []order.ExtraLine   `json:"extras"`
	UpdatedAt                  time.Time           `json:"updated_at"`
}

func newOrderResponse(o *order.Order) orderResponse {
	services, extras := o.Services, o.Extras
	if services == nil {
		services = []order.ServiceLine{}
	}
	if extras == nil {
		extras = []order.ExtraLine{}
	}
	return orderResponse{
		ID:                         o.ID,
		Status:                     o.Status,
		ServiceDate:                o.ServiceDate,
		SubTotal:                   o.SubTotal,
		Tax:                        o.Tax,
		Tips:                       o.Tips,
		CompanyDevelopmentTips:     o.CompanyDevelopmentTips,
		DiscountAmount:             o.DiscountAmount,
		SubscriptionDiscountAmount: o.SubscriptionDiscountAmount,
		GiftCardCode:               o.GiftCardCode,
		GiftCardAmountUsed:         o.GiftCardAmountUsed,
		Total:                      o.Total,
		TotalDuration:              o.TotalDuration,
		MaidsCount:                 o.MaidsCount,
		IsPaid:                     o.IsPaid,
		Services:                   services,
		Extras:                     extras,
		UpdatedAt:                  o.UpdatedAt,
	}
}

type previewResponse struct {
	Order               orderResponse   `json:"order"`
	OriginalTotal       decimal.Decimal `json:"original_total"`
	TotalBeforeGiftCard decimal.Decimal `json:"total_before_gift_card"`
	AdditionalAmount    decimal.Decimal `json:"additional_amount"`
}

type commitResponse struct {
	Order            orderResponse   `json:"order"`
	OriginalTotal    decimal.Decimal `json:"original_total"`
	AdditionalAmount decimal.Decimal `json:"additional_amount"`
}

type chargeResponse struct {
	AdditionalAmount decimal.Decimal `json:"additional_amount"`
	Charge           *chargeDTO      `json:"charge"`
}

type chargeDTO struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	ClientSecret string          `json:"client_secret,omitempty"`
}

func decodeSelection(w http.ResponseWriter, r *http.Request) (order.Selection, error) {
	var sel order.Selection
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sel); err != nil {
		return sel, &badRequestError{err: err}
	}
	return sel, nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError maps domain errors to HTTP statuses. Anything unrecognised is
// logged and reported as 500 without details.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = http.StatusText(status)
	}
	respondJSON(w, status, errorResponse{Code: status, Message: msg})
}

func errorStatus(err error) int {
	var (
		badReq   *badRequestError
		decrease *pricing.TotalDecreaseError
		notFound *catalog.NotFoundError
		invalid  *order.InvalidLineError
		balance  *giftcard.InsufficientBalanceError
	)
	switch {
	case errors.As(err, &badReq), errors.Is(err, errMissingActor):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrOrderFinalized),
		errors.Is(err, ErrEditWindowClosed),
		errors.As(err, &decrease):
		return http.StatusConflict
	case errors.Is(err, order.ErrEmptySelection),
		errors.Is(err, payments.ErrInvalidAmount),
		errors.As(err, &notFound),
		errors.As(err, &invalid),
		errors.As(err, &balance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func actorID(r *http.Request) (string, error) {
	actor := r.Header.Get(actorHeader)
	if actor == "" {
		return "", errMissingActor
	}
	if len(actor) > 128 {
		return "", &badRequestError{err: fmt.Errorf("%s is longer than 128 bytes", actorHeader)}
	}
	return actor, nil
}
