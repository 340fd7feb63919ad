package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentState string

const (
	PaymentStateInitiated PaymentState = "initiated"
	PaymentStateSuccess   PaymentState = "success"
	PaymentStateFailed    PaymentState = "failed"
	PaymentStateRefunded  PaymentState = "refunded"
)

// Terminal reports whether no further settlement may change the state.
func (s PaymentState) Terminal() bool {
	return s == PaymentStateSuccess || s == PaymentStateFailed || s == PaymentStateRefunded
}

// One payment per order. Gateway references are globally unique and never
// reused across orders; they stay NULL until the gateway hands them out.
type Payment struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID          int64           `gorm:"not null;uniqueIndex" json:"order_id"`
	GatewayOrderID   *string         `gorm:"type:varchar(100);uniqueIndex" json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string         `gorm:"type:varchar(100);uniqueIndex" json:"gateway_payment_id,omitempty"`
	GatewaySignature string          `gorm:"type:varchar(255)" json:"-"`
	Amount           decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency         string          `gorm:"type:varchar(10);not null" json:"currency"`
	Status           PaymentState    `gorm:"type:varchar(20);not null;index" json:"status"`
	GatewayResponse  string          `gorm:"type:text" json:"-"`
	CreatedAt        time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// Settle merges a terminal gateway outcome into the payment/order pair.
// A payment already in a terminal state is left untouched, so webhook
// replays and the verify/webhook race both converge without double
// transitions. Returns whether anything changed.
func Settle(p *Payment, o *Order, captured bool) bool {
	if p.Status.Terminal() {
		return false
	}
	if captured {
		p.Status = PaymentStateSuccess
		o.PaymentStatus = OrderPaymentSuccess
		o.Status = OrderStatusPaid
	} else {
		p.Status = PaymentStateFailed
		o.PaymentStatus = OrderPaymentFailed
		o.Status = OrderStatusPaymentFailed
	}
	return true
}
