package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopapi/internal/domain/model"
	"shopapi/internal/infra/gateway"
)

const testSecret = "whsec_test"

func newPaymentUsecase(s *memStore, gw *fakeGateway) *PaymentUsecase {
	return NewPaymentUsecase(memTx{s}, memOrders{s}, gw, testSecret, "INR", zap.NewNop())
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func seedInitiatedPayment(s *memStore, orderID int64, gatewayOrderID string) model.Payment {
	ref := gatewayOrderID
	p := model.Payment{
		OrderID:        orderID,
		GatewayOrderID: &ref,
		Amount:         s.orders[orderID].TotalAmount,
		Currency:       "INR",
		Status:         model.PaymentStateInitiated,
	}
	id, _ := memPayments{s}.Create(context.Background(), p)
	p.ID = id
	return p
}

func TestInitiatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("creates intent and payment row", func(t *testing.T) {
		s := newMemStore()
		o := seedOrder(s, 1, "660.00", model.OrderStatusPending, model.OrderPaymentPending)
		gw := &fakeGateway{intent: gateway.Intent{GatewayOrderID: "order_abc123"}}

		out, err := newPaymentUsecase(s, gw).Initiate(ctx, 1, o.ID)
		require.NoError(t, err)

		assert.Equal(t, "order_abc123", out.GatewayOrderID)
		assert.Equal(t, int64(66000), out.Amount, "amount in minor units")
		assert.Equal(t, "INR", out.Currency)
		assert.Equal(t, o.OrderNumber, out.OrderNumber)

		p, err := memPayments{s}.FindByOrderID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStateInitiated, p.Status)
		require.NotNil(t, p.GatewayOrderID)
		assert.Equal(t, "order_abc123", *p.GatewayOrderID)
	})

	t.Run("re-initiating replaces the gateway reference", func(t *testing.T) {
		s := newMemStore()
		o := seedOrder(s, 1, "660.00", model.OrderStatusPending, model.OrderPaymentPending)
		seedInitiatedPayment(s, o.ID, "order_old")
		gw := &fakeGateway{intent: gateway.Intent{GatewayOrderID: "order_new"}}

		_, err := newPaymentUsecase(s, gw).Initiate(ctx, 1, o.ID)
		require.NoError(t, err)

		p, err := memPayments{s}.FindByOrderID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, "order_new", *p.GatewayOrderID)
		assert.Len(t, s.payments, 1, "one payment row per order")
	})

	t.Run("already paid order is rejected", func(t *testing.T) {
		s := newMemStore()
		o := seedOrder(s, 1, "660.00", model.OrderStatusPaid, model.OrderPaymentSuccess)
		gw := &fakeGateway{}

		_, err := newPaymentUsecase(s, gw).Initiate(ctx, 1, o.ID)
		he, ok := AsHTTPError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Status)
		assert.Equal(t, "order already paid", he.Message)
		assert.Zero(t, gw.calls, "gateway never called")
	})

	t.Run("cancelled order is rejected", func(t *testing.T) {
		s := newMemStore()
		o := seedOrder(s, 1, "660.00", model.OrderStatusCancelled, model.OrderPaymentPending)

		_, err := newPaymentUsecase(s, &fakeGateway{}).Initiate(ctx, 1, o.ID)
		he, ok := AsHTTPError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Status)
	})

	t.Run("gateway failure writes nothing", func(t *testing.T) {
		s := newMemStore()
		o := seedOrder(s, 1, "660.00", model.OrderStatusPending, model.OrderPaymentPending)
		gw := &fakeGateway{err: gateway.ErrUnavailable}

		_, err := newPaymentUsecase(s, gw).Initiate(ctx, 1, o.ID)
		he, ok := AsHTTPError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadGateway, he.Status)
		assert.Equal(t, "payment gateway unavailable", he.Message)
		assert.Empty(t, s.payments)
	})

	t.Run("another user's order reads as missing", func(t *testing.T) {
		s := newMemStore()
		o := seedOrder(s, 2, "660.00", model.OrderStatusPending, model.OrderPaymentPending)

		_, err := newPaymentUsecase(s, &fakeGateway{}).Initiate(ctx, 1, o.ID)
		he, ok := AsHTTPError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Status)
	})
}

func TestVerifyPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("valid signature settles order and payment", func(t *testing.T) {
		s := newMemStore()
		o := seedOrder(s, 1, "660.00", model.OrderStatusPending, model.OrderPaymentPending)
		seedInitiatedPayment(s, o.ID, "order_abc")

		out, err := newPaymentUsecase(s, &fakeGateway{}).Verify(ctx, 1, VerifyInput{
			GatewayOrderID:   "order_abc",
			GatewayPaymentID: "pay_xyz",
			Signature:        gateway.PaymentSignature("order_abc", "pay_xyz", testSecret),
			OrderID:          o.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, "success", out.PaymentStatus)

		assert.Equal(t, model.OrderStatusPaid, s.orders[o.ID].Status)
		assert.Equal(t, model.OrderPaymentSuccess, s.orders[o.ID].PaymentStatus)

		p, _ := memPayments{s}.FindByOrderID(ctx, o.ID)
		assert.Equal(t, model.PaymentStateSuccess, p.Status)
		require.NotNil(t, p.GatewayPaymentID)
		assert.Equal(t, "pay_xyz", *p.GatewayPaymentID)
	})

	t.Run("tampered signature never touches state", func(t *testing.T) {
		s := newMemStore()
		o := seedOrder(s, 1, "660.00", model.OrderStatusPending, model.OrderPaymentPending)
		seedInitiatedPayment(s, o.ID, "order_abc")

		_, err := newPaymentUsecase(s, &fakeGateway{}).Verify(ctx, 1, VerifyInput{
			GatewayOrderID:   "order_abc",
			GatewayPaymentID: "pay_xyz",
			Signature:        gateway.PaymentSignature("order_abc", "pay_FORGED", testSecret),
			OrderID:          o.ID,
		})
		he, ok := AsHTTPError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Status)
		assert.Equal(t, "invalid payment signature", he.Message)

		assert.Equal(t, model.OrderStatusPending, s.orders[o.ID].Status)
		p, _ := memPayments{s}.FindByOrderID(ctx, o.ID)
		assert.Equal(t, model.PaymentStateInitiated, p.Status)
		assert.Nil(t, p.GatewayPaymentID)
	})

	t.Run("refs signed for another order settle nothing", func(t *testing.T) {
		s := newMemStore()
		orderA := seedOrder(s, 1, "100.00", model.OrderStatusPending, model.OrderPaymentPending)
		seedInitiatedPayment(s, orderA.ID, "order_a")
		orderB := seedOrder(s, 1, "660.00", model.OrderStatusPending, model.OrderPaymentPending)
		seedInitiatedPayment(s, orderB.ID, "order_b")

		// a genuine signature for order A's refs, replayed against order B
		_, err := newPaymentUsecase(s, &fakeGateway{}).Verify(ctx, 1, VerifyInput{
			GatewayOrderID:   "order_a",
			GatewayPaymentID: "pay_a",
			Signature:        gateway.PaymentSignature("order_a", "pay_a", testSecret),
			OrderID:          orderB.ID,
		})
		he, ok := AsHTTPError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Status)
		assert.Equal(t, "payment reference mismatch", he.Message)

		assert.Equal(t, model.OrderStatusPending, s.orders[orderB.ID].Status)
		p, _ := memPayments{s}.FindByOrderID(ctx, orderB.ID)
		assert.Equal(t, model.PaymentStateInitiated, p.Status)
		assert.Nil(t, p.GatewayPaymentID)
	})

	t.Run("missing fields are rejected", func(t *testing.T) {
		s := newMemStore()
		_, err := newPaymentUsecase(s, &fakeGateway{}).Verify(ctx, 1, VerifyInput{OrderID: 1})
		he, ok := AsHTTPError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Status)
	})
}

func capturedEvent(paymentRef string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"%s","order_id":"order_abc"}}}}`,
		paymentRef))
}

func failedEvent(orderRef string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_xyz","order_id":"%s"}}}}`,
		orderRef))
}

func TestWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("payment.captured settles by gateway payment id", func(t *testing.T) {
		s := newMemStore()
		o := seedOrder(s, 1, "660.00", model.OrderStatusPending, model.OrderPaymentPending)
		p := seedInitiatedPayment(s, o.ID, "order_abc")
		ref := "pay_xyz"
		p.GatewayPaymentID = &ref
		require.NoError(t, memPayments{s}.Update(ctx, p))

		body := capturedEvent("pay_xyz")
		require.NoError(t, newPaymentUsecase(s, &fakeGateway{}).Webhook(ctx, body, signBody(body)))

		assert.Equal(t, model.OrderStatusPaid, s.orders[o.ID].Status)
		got, _ := memPayments{s}.FindByOrderID(ctx, o.ID)
		assert.Equal(t, model.PaymentStateSuccess, got.Status)
		assert.Equal(t, string(body), got.GatewayResponse, "raw event stored for audit")
	})

	t.Run("replay of a settled payment is a no-op", func(t *testing.T) {
		s := newMemStore()
		o := seedOrder(s, 1, "660.00", model.OrderStatusPending, model.OrderPaymentPending)
		p := seedInitiatedPayment(s, o.ID, "order_abc")
		ref := "pay_xyz"
		p.GatewayPaymentID = &ref
		require.NoError(t, memPayments{s}.Update(ctx, p))

		uc := newPaymentUsecase(s, &fakeGateway{})
		body := capturedEvent("pay_xyz")
		require.NoError(t, uc.Webhook(ctx, body, signBody(body)))

		// a late failed event for the same payment must not flip the state
		late := failedEvent("order_abc")
		require.NoError(t, uc.Webhook(ctx, late, signBody(late)))

		assert.Equal(t, model.OrderStatusPaid, s.orders[o.ID].Status)
		got, _ := memPayments{s}.FindByOrderID(ctx, o.ID)
		assert.Equal(t, model.PaymentStateSuccess, got.Status)
	})

	t.Run("identical captured event delivered twice settles once", func(t *testing.T) {
		s := newMemStore()
		o := seedOrder(s, 1, "660.00", model.OrderStatusPending, model.OrderPaymentPending)
		p := seedInitiatedPayment(s, o.ID, "order_abc")
		ref := "pay_xyz"
		p.GatewayPaymentID = &ref
		require.NoError(t, memPayments{s}.Update(ctx, p))

		uc := newPaymentUsecase(s, &fakeGateway{})
		body := capturedEvent("pay_xyz")
		require.NoError(t, uc.Webhook(ctx, body, signBody(body)))
		require.NoError(t, uc.Webhook(ctx, body, signBody(body)))

		assert.Equal(t, model.OrderStatusPaid, s.orders[o.ID].Status)
		assert.Equal(t, model.OrderPaymentSuccess, s.orders[o.ID].PaymentStatus)
		got, _ := memPayments{s}.FindByOrderID(ctx, o.ID)
		assert.Equal(t, model.PaymentStateSuccess, got.Status)
	})

	t.Run("payment.failed settles by gateway order id", func(t *testing.T) {
		s := newMemStore()
		o := seedOrder(s, 1, "660.00", model.OrderStatusPending, model.OrderPaymentPending)
		seedInitiatedPayment(s, o.ID, "order_abc")

		body := failedEvent("order_abc")
		require.NoError(t, newPaymentUsecase(s, &fakeGateway{}).Webhook(ctx, body, signBody(body)))

		assert.Equal(t, model.OrderStatusPaymentFailed, s.orders[o.ID].Status)
		assert.Equal(t, model.OrderPaymentFailed, s.orders[o.ID].PaymentStatus)
		got, _ := memPayments{s}.FindByOrderID(ctx, o.ID)
		assert.Equal(t, model.PaymentStateFailed, got.Status)
	})

	t.Run("unknown payment is acknowledged and ignored", func(t *testing.T) {
		s := newMemStore()
		body := capturedEvent("pay_nobody_knows")
		assert.NoError(t, newPaymentUsecase(s, &fakeGateway{}).Webhook(ctx, body, signBody(body)))
	})

	t.Run("unrecognized event is a no-op", func(t *testing.T) {
		s := newMemStore()
		o := seedOrder(s, 1, "660.00", model.OrderStatusPending, model.OrderPaymentPending)
		body := []byte(`{"event":"refund.processed","payload":{}}`)
		require.NoError(t, newPaymentUsecase(s, &fakeGateway{}).Webhook(ctx, body, signBody(body)))
		assert.Equal(t, model.OrderStatusPending, s.orders[o.ID].Status)
	})

	t.Run("bad signature is rejected before parsing", func(t *testing.T) {
		s := newMemStore()
		body := capturedEvent("pay_xyz")
		err := newPaymentUsecase(s, &fakeGateway{}).Webhook(ctx, body, "deadbeef")
		he, ok := AsHTTPError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Status)
		assert.Equal(t, "invalid webhook signature", he.Message)
	})
}
