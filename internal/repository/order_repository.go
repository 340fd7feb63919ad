package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"shopapi/internal/domain/model"
)

type OrderRepository interface {
	Create(ctx context.Context, o model.Order) (int64, error)
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	// FindByIDForUpdate row-locks the order (cancellation, settlement).
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	// UpdateStatuses writes both lifecycle and payment status in one UPDATE.
	UpdateStatuses(ctx context.Context, orderID int64, status model.OrderStatus, ps model.OrderPaymentStatus) error
	// SalesSince aggregates paid orders created at or after since.
	SalesSince(ctx context.Context, since time.Time) (count int64, revenue decimal.Decimal, err error)
}
