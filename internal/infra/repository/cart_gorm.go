package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"shopapi/internal/domain/model"
	repo "shopapi/internal/repository"
)

type CartGormRepository struct {
	db *gorm.DB
}

func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

func ownerScope(db *gorm.DB, owner model.CartOwner) *gorm.DB {
	if owner.IsUser() {
		return db.Where("user_id = ? AND session_key IS NULL", owner.UserID)
	}
	return db.Where("session_key = ? AND user_id IS NULL", owner.SessionKey)
}

// Find the owner's cart, creating one when missing. A concurrent create is
// resolved by re-reading after the insert fails.
func (r *CartGormRepository) GetOrCreate(ctx context.Context, owner model.CartOwner) (model.Cart, error) {
	var cart model.Cart

	err := ownerScope(r.db.WithContext(ctx), owner).
		First(&cart).Error

	if err == nil {
		return cart, nil
	}
	if !isNotFound(err) {
		return model.Cart{}, err
	}

	now := time.Now()
	newCart := model.Cart{CreatedAt: now, UpdatedAt: now}
	if owner.IsUser() {
		uid := owner.UserID
		newCart.UserID = &uid
	} else {
		key := owner.SessionKey
		newCart.SessionKey = &key
	}

	if createErr := r.db.WithContext(ctx).Create(&newCart).Error; createErr != nil {
		if !isUniqueViolation(createErr) {
			return model.Cart{}, createErr
		}
		retryErr := ownerScope(r.db.WithContext(ctx), owner).
			First(&cart).Error
		if retryErr != nil {
			return model.Cart{}, createErr
		}
		return cart, nil
	}

	return newCart, nil
}

func (r *CartGormRepository) Find(ctx context.Context, owner model.CartOwner) (model.Cart, error) {
	var cart model.Cart

	err := ownerScope(r.db.WithContext(ctx), owner).
		First(&cart).Error

	if isNotFound(err) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

func (r *CartGormRepository) Delete(ctx context.Context, cartID int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Cart{}, cartID)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
