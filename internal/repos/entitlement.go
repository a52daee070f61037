package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/types"
)

type EntitlementRepo interface {
	Create(ctx context.Context, tx *gorm.DB, ents []*types.Entitlement) ([]*types.Entitlement, error)
	GetActiveByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, now time.Time) ([]*types.Entitlement, error)
	GetBySource(ctx context.Context, tx *gorm.DB, sourceType string, sourceID uuid.UUID) ([]*types.Entitlement, error)
	SoftDeleteBySource(ctx context.Context, tx *gorm.DB, sourceType string, sourceID uuid.UUID) error
	SoftDeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type entitlementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEntitlementRepo(db *gorm.DB, baseLog *logger.Logger) EntitlementRepo {
	return &entitlementRepo{db: db, log: baseLog.With("repo", "EntitlementRepo")}
}

func (r *entitlementRepo) Create(ctx context.Context, tx *gorm.DB, ents []*types.Entitlement) ([]*types.Entitlement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ents) == 0 {
		return []*types.Entitlement{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&ents).Error; err != nil {
		return nil, err
	}
	return ents, nil
}

func (r *entitlementRepo) GetActiveByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, now time.Time) ([]*types.Entitlement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Entitlement
	if userID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *entitlementRepo) GetBySource(ctx context.Context, tx *gorm.DB, sourceType string, sourceID uuid.UUID) ([]*types.Entitlement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Entitlement
	if sourceType == "" || sourceID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *entitlementRepo) SoftDeleteBySource(ctx context.Context, tx *gorm.DB, sourceType string, sourceID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Delete(&types.Entitlement{}).Error
}

func (r *entitlementRepo) SoftDeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Entitlement{}).Error
}
