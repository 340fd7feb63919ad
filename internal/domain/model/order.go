package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusPaid          OrderStatus = "paid"
	OrderStatusProcessing    OrderStatus = "processing"
	OrderStatusShipped       OrderStatus = "shipped"
	OrderStatusDelivered     OrderStatus = "delivered"
	OrderStatusCancelled     OrderStatus = "cancelled"
	OrderStatusPaymentFailed OrderStatus = "payment_failed"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled,
		OrderStatusPaymentFailed:
		return true
	}
	return false
}

// Payment status as seen from the order side.
type OrderPaymentStatus string

const (
	OrderPaymentPending  OrderPaymentStatus = "pending"
	OrderPaymentSuccess  OrderPaymentStatus = "success"
	OrderPaymentFailed   OrderPaymentStatus = "failed"
	OrderPaymentRefunded OrderPaymentStatus = "refunded"
)

// Identity is frozen at creation: order_number, total and the shipping
// address snapshot never change afterwards.
type Order struct {
	ID              int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          int64              `gorm:"not null;index" json:"user_id"`
	OrderNumber     string             `gorm:"type:varchar(50);not null;uniqueIndex" json:"order_number"`
	TotalAmount     decimal.Decimal    `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	Status          OrderStatus        `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus   OrderPaymentStatus `gorm:"type:varchar(20);not null" json:"payment_status"`
	ShippingAddress string             `gorm:"type:text;not null" json:"shipping_address"`
	CreatedAt       time.Time          `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time          `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// NewOrderNumber returns "ORD-" plus 12 upper hex chars.
func NewOrderNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(raw[:12])
}
