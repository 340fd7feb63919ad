package repository

import (
	"context"

	"shopapi/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, u model.User) (int64, error)
	FindByID(ctx context.Context, userID int64) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
}
