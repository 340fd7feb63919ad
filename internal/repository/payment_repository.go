package repository

import (
	"context"

	"shopapi/internal/domain/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, p model.Payment) (int64, error)
	Update(ctx context.Context, p model.Payment) error
	FindByOrderID(ctx context.Context, orderID int64) (model.Payment, error)
	// FindByOrderIDForUpdate row-locks the payment. Settlement always locks
	// the order first, then the payment, in every code path.
	FindByOrderIDForUpdate(ctx context.Context, orderID int64) (model.Payment, error)
	FindByGatewayOrderID(ctx context.Context, ref string) (model.Payment, error)
	FindByGatewayPaymentID(ctx context.Context, ref string) (model.Payment, error)
}
