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

type UserTokenRepo interface {
	Create(ctx context.Context, tx *gorm.DB, token *types.UserToken) (*types.UserToken, error)
	GetByToken(ctx context.Context, tx *gorm.DB, token string) (*types.UserToken, error)
	DeleteByToken(ctx context.Context, tx *gorm.DB, token string) error
	DeleteExpired(ctx context.Context, tx *gorm.DB, before time.Time) error
}

type userTokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserTokenRepo(db *gorm.DB, baseLog *logger.Logger) UserTokenRepo {
	return &userTokenRepo{db: db, log: baseLog.With("repo", "UserTokenRepo")}
}

func (r *userTokenRepo) Create(ctx context.Context, tx *gorm.DB, token *types.UserToken) (*types.UserToken, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if token == nil {
		return nil, nil
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(token).Error; err != nil {
		return nil, err
	}
	return token, nil
}

func (r *userTokenRepo) GetByToken(ctx context.Context, tx *gorm.DB, token string) (*types.UserToken, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if token == "" {
		return nil, nil
	}
	var t types.UserToken
	err := transaction.WithContext(ctx).Where("token = ?", token).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *userTokenRepo) DeleteByToken(ctx context.Context, tx *gorm.DB, token string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("token = ?", token).
		Delete(&types.UserToken{}).Error
}

func (r *userTokenRepo) DeleteExpired(ctx context.Context, tx *gorm.DB, before time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&types.UserToken{}).Error
}
