package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/types"
)

type ProductRepo interface {
	Create(ctx context.Context, tx *gorm.DB, products []*types.Product) ([]*types.Product, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Product, error)
	GetByStripePriceID(ctx context.Context, tx *gorm.DB, priceID string) (*types.Product, error)
	GetByResourceID(ctx context.Context, tx *gorm.DB, resourceID uuid.UUID) (*types.Product, error)
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return &productRepo{db: db, log: baseLog.With("repo", "ProductRepo")}
}

func (r *productRepo) Create(ctx context.Context, tx *gorm.DB, products []*types.Product) ([]*types.Product, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(products) == 0 {
		return []*types.Product{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Product, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var p types.Product
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) GetByStripePriceID(ctx context.Context, tx *gorm.DB, priceID string) (*types.Product, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if priceID == "" {
		return nil, nil
	}
	var p types.Product
	err := transaction.WithContext(ctx).Where("stripe_price_id = ?", priceID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) GetByResourceID(ctx context.Context, tx *gorm.DB, resourceID uuid.UUID) (*types.Product, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if resourceID == uuid.Nil {
		return nil, nil
	}
	var p types.Product
	err := transaction.WithContext(ctx).Where("resource_id = ?", resourceID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
