package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopapi/internal/domain/model"
	repo "shopapi/internal/repository"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

func (r *PaymentGormRepository) Create(ctx context.Context, p model.Payment) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return 0, err
	}
	return p.ID, nil
}

// Update persists all mutable fields of an already-loaded payment.
func (r *PaymentGormRepository) Update(ctx context.Context, p model.Payment) error {
	res := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"gateway_order_id":   p.GatewayOrderID,
			"gateway_payment_id": p.GatewayPaymentID,
			"gateway_signature":  p.GatewaySignature,
			"status":             p.Status,
			"gateway_response":   p.GatewayResponse,
			"amount":             p.Amount,
			"currency":           p.Currency,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *PaymentGormRepository) FindByOrderID(ctx context.Context, orderID int64) (model.Payment, error) {
	return r.findOne(ctx, false, "order_id = ?", orderID)
}

func (r *PaymentGormRepository) FindByOrderIDForUpdate(ctx context.Context, orderID int64) (model.Payment, error) {
	return r.findOne(ctx, true, "order_id = ?", orderID)
}

func (r *PaymentGormRepository) FindByGatewayOrderID(ctx context.Context, ref string) (model.Payment, error) {
	return r.findOne(ctx, false, "gateway_order_id = ?", ref)
}

func (r *PaymentGormRepository) FindByGatewayPaymentID(ctx context.Context, ref string) (model.Payment, error) {
	return r.findOne(ctx, false, "gateway_payment_id = ?", ref)
}

func (r *PaymentGormRepository) findOne(ctx context.Context, lock bool, query string, arg interface{}) (model.Payment, error) {
	var p model.Payment

	db := r.db.WithContext(ctx)
	if lock {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	err := db.Where(query, arg).First(&p).Error

	if isNotFound(err) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}
