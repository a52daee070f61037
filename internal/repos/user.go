package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/types"
)

type UserRepo interface {
	Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.User, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error)
	EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error)
	UpdateRoles(ctx context.Context, tx *gorm.DB, id uuid.UUID, roles []string) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(users) == 0 {
		return []*types.User{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var u types.User
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if email == "" {
		return nil, nil
	}
	var u types.User
	err := transaction.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.User{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepo) UpdateRoles(ctx context.Context, tx *gorm.DB, id uuid.UUID, roles []string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", id).
		Update("roles", types.MustJSON(roles)).Error
}
