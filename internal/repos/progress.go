package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/types"
)

type ProgressRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, userID, resourceID uuid.UUID, completedAt *time.Time) (*types.ResourceProgress, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.ResourceProgress, error)
	GetByUserAndResource(ctx context.Context, tx *gorm.DB, userID, resourceID uuid.UUID) (*types.ResourceProgress, error)
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	return &progressRepo{db: db, log: baseLog.With("repo", "ProgressRepo")}
}

func (r *progressRepo) Upsert(ctx context.Context, tx *gorm.DB, userID, resourceID uuid.UUID, completedAt *time.Time) (*types.ResourceProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	existing, err := r.GetByUserAndResource(ctx, transaction, userID, resourceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := transaction.WithContext(ctx).
			Model(&types.ResourceProgress{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"completed_at": completedAt,
				"updated_at":   time.Now().UTC(),
			}).Error; err != nil {
			return nil, err
		}
		existing.CompletedAt = completedAt
		return existing, nil
	}
	p := &types.ResourceProgress{
		ID:          uuid.New(),
		UserID:      userID,
		ResourceID:  resourceID,
		CompletedAt: completedAt,
	}
	if err := transaction.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (r *progressRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.ResourceProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ResourceProgress
	if userID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *progressRepo) GetByUserAndResource(ctx context.Context, tx *gorm.DB, userID, resourceID uuid.UUID) (*types.ResourceProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || resourceID == uuid.Nil {
		return nil, nil
	}
	var p types.ResourceProgress
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND resource_id = ?", userID, resourceID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
