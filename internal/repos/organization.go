package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/types"
)

type OrganizationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, org *types.Organization) (*types.Organization, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Organization, error)
	AddMember(ctx context.Context, tx *gorm.DB, m *types.OrganizationMembership) (*types.OrganizationMembership, error)
	GetMembershipsByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.OrganizationMembership, error)
	RemoveMember(ctx context.Context, tx *gorm.DB, orgID, userID uuid.UUID) error
}

type organizationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrganizationRepo(db *gorm.DB, baseLog *logger.Logger) OrganizationRepo {
	return &organizationRepo{db: db, log: baseLog.With("repo", "OrganizationRepo")}
}

func (r *organizationRepo) Create(ctx context.Context, tx *gorm.DB, org *types.Organization) (*types.Organization, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(org).Error; err != nil {
		return nil, err
	}
	return org, nil
}

func (r *organizationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Organization, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var org types.Organization
	err := transaction.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepo) AddMember(ctx context.Context, tx *gorm.DB, m *types.OrganizationMembership) (*types.OrganizationMembership, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

func (r *organizationRepo) GetMembershipsByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.OrganizationMembership, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.OrganizationMembership
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

func (r *organizationRepo) RemoveMember(ctx context.Context, tx *gorm.DB, orgID, userID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Delete(&types.OrganizationMembership{}).Error
}
