package repository

import (
	"context"

	"shopapi/internal/domain/model"
)

// Stock mutations. Decrease/Increase are plain atomic updates; callers that
// need check-then-act semantics take the row lock first via FindForUpdate,
// always in ascending product-id order to avoid lock-ordering deadlocks.
type InventoryRepository interface {
	// FindForUpdate row-locks the product for the rest of the transaction.
	FindForUpdate(ctx context.Context, productID int64) (model.Product, error)

	// Decrease subtracts qty only while stock stays non-negative.
	// Reports false when stock was insufficient.
	Decrease(ctx context.Context, productID int64, qty int64) (bool, error)

	// Increase restores stock (order cancellation).
	Increase(ctx context.Context, productID int64, qty int64) error
}
