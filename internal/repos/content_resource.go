package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/types"
)

type ContentResourceRepo interface {
	Create(ctx context.Context, tx *gorm.DB, resources []*types.ContentResource) ([]*types.ContentResource, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ContentResource, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ContentResource, error)
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.ContentResource, error)
	SlugExists(ctx context.Context, tx *gorm.DB, resourceType, slug string) (bool, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields datatypes.JSON) error
	SoftDelete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	ListByType(ctx context.Context, tx *gorm.DB, resourceType string, limit int) ([]*types.ContentResource, error)
}

type contentResourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentResourceRepo(db *gorm.DB, baseLog *logger.Logger) ContentResourceRepo {
	return &contentResourceRepo{db: db, log: baseLog.With("repo", "ContentResourceRepo")}
}

func (r *contentResourceRepo) Create(ctx context.Context, tx *gorm.DB, resources []*types.ContentResource) ([]*types.ContentResource, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(resources) == 0 {
		return []*types.ContentResource{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

func (r *contentResourceRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ContentResource, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var res types.ContentResource
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *contentResourceRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ContentResource, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ContentResource
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contentResourceRepo) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.ContentResource, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if slug == "" {
		return nil, nil
	}
	var res types.ContentResource
	err := transaction.WithContext(ctx).
		Where(datatypes.JSONQuery("fields").Equals(slug, "slug")).
		First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *contentResourceRepo) SlugExists(ctx context.Context, tx *gorm.DB, resourceType, slug string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.ContentResource{}).
		Where("type = ?", resourceType).
		Where(datatypes.JSONQuery("fields").Equals(slug, "slug")).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *contentResourceRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields datatypes.JSON) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.ContentResource{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"fields":     fields,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *contentResourceRepo) SoftDelete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.ContentResource{}).Error
}

func (r *contentResourceRepo) ListByType(ctx context.Context, tx *gorm.DB, resourceType string, limit int) ([]*types.ContentResource, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var out []*types.ContentResource
	if err := transaction.WithContext(ctx).
		Where("type = ?", resourceType).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
