package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/types"
)

type PurchaseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, purchases []*types.Purchase) ([]*types.Purchase, error)
	GetByStripeSessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.Purchase, error)
	GetValidByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]*types.Purchase, error)
	GetByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]*types.Purchase, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Purchase, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
}

type purchaseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPurchaseRepo(db *gorm.DB, baseLog *logger.Logger) PurchaseRepo {
	return &purchaseRepo{db: db, log: baseLog.With("repo", "PurchaseRepo")}
}

func (r *purchaseRepo) Create(ctx context.Context, tx *gorm.DB, purchases []*types.Purchase) ([]*types.Purchase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(purchases) == 0 {
		return []*types.Purchase{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&purchases).Error; err != nil {
		return nil, err
	}
	return purchases, nil
}

func (r *purchaseRepo) GetByStripeSessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.Purchase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if sessionID == "" {
		return nil, nil
	}
	var p types.Purchase
	err := transaction.WithContext(ctx).Where("stripe_session_id = ?", sessionID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *purchaseRepo) GetValidByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]*types.Purchase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Purchase
	if productID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("product_id = ? AND status = ?", productID, types.PurchaseStatusValid).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *purchaseRepo) GetByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]*types.Purchase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Purchase
	if productID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("product_id = ?", productID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *purchaseRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Purchase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Purchase
	if userID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("purchased_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *purchaseRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Purchase{}).
		Where("id = ?", id).
		Update("status", status).Error
}
