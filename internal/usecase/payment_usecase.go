package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopapi/internal/domain/model"
	"shopapi/internal/infra/gateway"
	repo "shopapi/internal/repository"
)

// PaymentUsecase owns gateway-order creation and settlement. Settlement has
// two writers, the client verify call and the gateway webhook; both apply
// model.Settle under the order row lock, so replays and races converge on
// the same terminal state.
type PaymentUsecase struct {
	tx        repo.TransactionManager
	orderRepo repo.OrderRepository
	gw        gateway.PaymentGateway
	secret    string
	currency  string
	log       *zap.Logger
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	orderRepo repo.OrderRepository,
	gw gateway.PaymentGateway,
	secret string,
	currency string,
	log *zap.Logger,
) *PaymentUsecase {
	return &PaymentUsecase{
		tx:        tx,
		orderRepo: orderRepo,
		gw:        gw,
		secret:    secret,
		currency:  currency,
		log:       log,
	}
}

type InitiateOutput struct {
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"` // minor units
	Currency       string `json:"currency"`
	OrderID        int64  `json:"order_id"`
	OrderNumber    string `json:"order_number"`
}

// Initiate creates a remote payment intent for the order total and upserts
// the local payment row. The gateway is called before anything is written, so
// a gateway failure leaves no payment record with a stale reference.
func (u *PaymentUsecase) Initiate(ctx context.Context, userID int64, orderID int64) (InitiateOutput, error) {
	if userID <= 0 {
		return InitiateOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return InitiateOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order_id")
	}

	order, err := u.orderRepo.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return InitiateOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		return InitiateOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if order.UserID != userID {
		return InitiateOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
	}

	if order.PaymentStatus == model.OrderPaymentSuccess {
		return InitiateOutput{}, NewHTTPError(http.StatusBadRequest, "order already paid")
	}
	if order.Status == model.OrderStatusCancelled {
		return InitiateOutput{}, NewHTTPError(http.StatusBadRequest, "order is cancelled")
	}

	amountMinor := order.TotalAmount.Mul(decimal.NewFromInt(100)).IntPart()

	gwCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	intent, err := u.gw.CreateIntent(gwCtx, amountMinor, u.currency, order.OrderNumber)
	if err != nil {
		u.log.Warn("payment intent creation failed",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return InitiateOutput{}, NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
	}

	// get-or-create keyed by order; re-initiating an unpaid order replaces
	// the prior gateway reference
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ref := intent.GatewayOrderID

		p, err := r.Payments().FindByOrderIDForUpdate(ctx, order.ID)
		if errors.Is(err, repo.ErrNotFound) {
			_, err := r.Payments().Create(ctx, model.Payment{
				OrderID:        order.ID,
				GatewayOrderID: &ref,
				Amount:         order.TotalAmount,
				Currency:       u.currency,
				Status:         model.PaymentStateInitiated,
			})
			return err
		}
		if err != nil {
			return err
		}

		p.GatewayOrderID = &ref
		p.Status = model.PaymentStateInitiated
		p.Amount = order.TotalAmount
		p.Currency = u.currency
		return r.Payments().Update(ctx, p)
	})
	if err != nil {
		return InitiateOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return InitiateOutput{
		GatewayOrderID: intent.GatewayOrderID,
		Amount:         amountMinor,
		Currency:       u.currency,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
	}, nil
}

type VerifyInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	OrderID          int64
}

type VerifyOutput struct {
	Message       string `json:"message"`
	OrderNumber   string `json:"order_number"`
	PaymentStatus string `json:"payment_status"`
}

// Verify is the client-driven confirmation path. The signature is recomputed
// over "order_ref|payment_ref" and compared in constant time; a mismatch
// never touches order or payment state.
func (u *PaymentUsecase) Verify(ctx context.Context, userID int64, in VerifyInput) (VerifyOutput, error) {
	if userID <= 0 {
		return VerifyOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.GatewayOrderID == "" || in.GatewayPaymentID == "" || in.Signature == "" || in.OrderID <= 0 {
		return VerifyOutput{}, NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if !gateway.VerifyPaymentSignature(in.GatewayOrderID, in.GatewayPaymentID, in.Signature, u.secret) {
		u.log.Warn("payment signature mismatch",
			zap.Int64("order_id", in.OrderID),
			zap.String("gateway_order_id", in.GatewayOrderID),
		)
		return VerifyOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment signature")
	}

	var out VerifyOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// lock order first, payment second; the webhook path does the same
		o, err := r.Orders().FindByIDForUpdate(ctx, in.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}

		p, err := r.Payments().FindByOrderIDForUpdate(ctx, o.ID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "payment record not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// a signature issued for another order's refs must not settle this one
		if p.GatewayOrderID == nil || *p.GatewayOrderID != in.GatewayOrderID {
			u.log.Warn("payment reference mismatch",
				zap.Int64("order_id", o.ID),
				zap.String("gateway_order_id", in.GatewayOrderID),
			)
			return NewHTTPError(http.StatusBadRequest, "payment reference mismatch")
		}

		ref := in.GatewayPaymentID
		p.GatewayPaymentID = &ref
		p.GatewaySignature = in.Signature
		model.Settle(&p, &o, true)

		if err := r.Payments().Update(ctx, p); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.Orders().UpdateStatuses(ctx, o.ID, o.Status, o.PaymentStatus); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = VerifyOutput{
			Message:       "payment verified successfully",
			OrderNumber:   o.OrderNumber,
			PaymentStatus: string(p.Status),
		}
		return nil
	})

	if err != nil {
		return VerifyOutput{}, err
	}
	return out, nil
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// Webhook is the gateway-driven settlement path. Past the signature check it
// always succeeds: unknown payments are stale or duplicate events the
// gateway will stop retrying once acknowledged, so they are swallowed (and
// logged). Replays of an already-settled payment are no-ops.
func (u *PaymentUsecase) Webhook(ctx context.Context, body []byte, signature string) error {
	if !gateway.VerifyWebhookSignature(body, signature, u.secret) {
		u.log.Warn("webhook signature mismatch")
		return NewHTTPError(http.StatusBadRequest, "invalid webhook signature")
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	switch ev.Event {
	case "payment.captured":
		return u.settleFromWebhook(ctx, ev.Event, body, func(r repo.TxRepos) (model.Payment, error) {
			return r.Payments().FindByGatewayPaymentID(ctx, ev.Payload.Payment.Entity.ID)
		}, true)

	case "payment.failed":
		return u.settleFromWebhook(ctx, ev.Event, body, func(r repo.TxRepos) (model.Payment, error) {
			return r.Payments().FindByGatewayOrderID(ctx, ev.Payload.Payment.Entity.OrderID)
		}, false)

	default:
		// unrecognized events are acknowledged as no-ops
		return nil
	}
}

func (u *PaymentUsecase) settleFromWebhook(
	ctx context.Context,
	event string,
	rawBody []byte,
	find func(r repo.TxRepos) (model.Payment, error),
	captured bool,
) error {
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := find(r)
		if errors.Is(err, repo.ErrNotFound) {
			// stale or duplicate event; acknowledged, not an error
			u.log.Info("webhook for unknown payment ignored",
				zap.String("event", event),
			)
			return nil
		}
		if err != nil {
			return err
		}

		// re-read under locks, order first then payment
		o, err := r.Orders().FindByIDForUpdate(ctx, p.OrderID)
		if err != nil {
			return err
		}
		p, err = r.Payments().FindByOrderIDForUpdate(ctx, p.OrderID)
		if err != nil {
			return err
		}

		if !model.Settle(&p, &o, captured) {
			return nil
		}
		p.GatewayResponse = string(rawBody)

		if err := r.Payments().Update(ctx, p); err != nil {
			return err
		}
		return r.Orders().UpdateStatuses(ctx, o.ID, o.Status, o.PaymentStatus)
	})

	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}
