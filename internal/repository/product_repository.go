package repository

import (
	"context"

	"shopapi/internal/domain/model"
)

type ProductListFilter struct {
	Page       int
	Limit      int
	Q          string // substring match on name
	ActiveOnly bool
}

type ProductRepository interface {
	FindByID(ctx context.Context, productID int64) (model.Product, error)
	List(ctx context.Context, f ProductListFilter) ([]model.Product, int64, error)
	Create(ctx context.Context, p model.Product) (int64, error)
	Update(ctx context.Context, p model.Product) error
}
