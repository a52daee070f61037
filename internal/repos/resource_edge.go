package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/types"
)

type ResourceEdgeRepo interface {
	Create(ctx context.Context, tx *gorm.DB, edges []*types.ContentResourceResource) ([]*types.ContentResourceResource, error)
	GetChildren(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) ([]*types.ContentResourceResource, error)
	GetChildrenByParentIDs(ctx context.Context, tx *gorm.DB, parentIDs []uuid.UUID) ([]*types.ContentResourceResource, error)
	GetParentIDs(ctx context.Context, tx *gorm.DB, childID uuid.UUID) ([]uuid.UUID, error)
	UpdatePosition(ctx context.Context, tx *gorm.DB, parentID, childID uuid.UUID, position float64) error
	SoftDelete(ctx context.Context, tx *gorm.DB, parentID, childID uuid.UUID) error
}

type resourceEdgeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResourceEdgeRepo(db *gorm.DB, baseLog *logger.Logger) ResourceEdgeRepo {
	return &resourceEdgeRepo{db: db, log: baseLog.With("repo", "ResourceEdgeRepo")}
}

func (r *resourceEdgeRepo) Create(ctx context.Context, tx *gorm.DB, edges []*types.ContentResourceResource) ([]*types.ContentResourceResource, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(edges) == 0 {
		return []*types.ContentResourceResource{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}

func (r *resourceEdgeRepo) GetChildren(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) ([]*types.ContentResourceResource, error) {
	return r.GetChildrenByParentIDs(ctx, tx, []uuid.UUID{parentID})
}

// GetChildrenByParentIDs loads the live edges for a batch of parents,
// children preloaded, ordered by position ascending. Edges whose child
// row has been soft-deleted are dropped.
func (r *resourceEdgeRepo) GetChildrenByParentIDs(ctx context.Context, tx *gorm.DB, parentIDs []uuid.UUID) ([]*types.ContentResourceResource, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ContentResourceResource
	if len(parentIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Preload("Resource").
		Where("resource_of_id IN ?", parentIDs).
		Order("position ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	// Preload leaves Resource nil for soft-deleted children; those edges
	// are invisible to readers.
	kept := out[:0]
	for _, e := range out {
		if e != nil && e.Resource != nil {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

func (r *resourceEdgeRepo) GetParentIDs(ctx context.Context, tx *gorm.DB, childID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if childID == uuid.Nil {
		return nil, nil
	}
	var parents []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.ContentResourceResource{}).
		Where("resource_id = ?", childID).
		Pluck("resource_of_id", &parents).Error; err != nil {
		return nil, err
	}
	return parents, nil
}

func (r *resourceEdgeRepo) UpdatePosition(ctx context.Context, tx *gorm.DB, parentID, childID uuid.UUID, position float64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.ContentResourceResource{}).
		Where("resource_of_id = ? AND resource_id = ?", parentID, childID).
		Updates(map[string]any{
			"position":   position,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *resourceEdgeRepo) SoftDelete(ctx context.Context, tx *gorm.DB, parentID, childID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("resource_of_id = ? AND resource_id = ?", parentID, childID).
		Delete(&types.ContentResourceResource{}).Error
}
