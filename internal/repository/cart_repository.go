package repository

import (
	"context"

	"shopapi/internal/domain/model"
)

type CartRepository interface {
	GetOrCreate(ctx context.Context, owner model.CartOwner) (model.Cart, error)
	Find(ctx context.Context, owner model.CartOwner) (model.Cart, error)
	Delete(ctx context.Context, cartID int64) error
}
