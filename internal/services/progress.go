package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/apierr"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/types"
)

type ProgressService interface {
	MarkComplete(ctx context.Context, userID, resourceID uuid.UUID) (*types.ResourceProgress, error)
	MarkIncomplete(ctx context.Context, userID, resourceID uuid.UUID) (*types.ResourceProgress, error)
	ForUser(ctx context.Context, userID uuid.UUID) ([]*types.ResourceProgress, error)
}

type progressService struct {
	db      *gorm.DB
	log     *logger.Logger
	repo    repos.ProgressRepo
	resRepo repos.ContentResourceRepo
}

func NewProgressService(db *gorm.DB, baseLog *logger.Logger, repo repos.ProgressRepo, resRepo repos.ContentResourceRepo) ProgressService {
	return &progressService{
		db:      db,
		log:     baseLog.With("service", "ProgressService"),
		repo:    repo,
		resRepo: resRepo,
	}
}

func (s *progressService) MarkComplete(ctx context.Context, userID, resourceID uuid.UUID) (*types.ResourceProgress, error) {
	if err := s.checkResource(ctx, resourceID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return s.repo.Upsert(ctx, nil, userID, resourceID, &now)
}

func (s *progressService) MarkIncomplete(ctx context.Context, userID, resourceID uuid.UUID) (*types.ResourceProgress, error) {
	if err := s.checkResource(ctx, resourceID); err != nil {
		return nil, err
	}
	return s.repo.Upsert(ctx, nil, userID, resourceID, nil)
}

func (s *progressService) ForUser(ctx context.Context, userID uuid.UUID) ([]*types.ResourceProgress, error) {
	return s.repo.GetByUserID(ctx, nil, userID)
}

func (s *progressService) checkResource(ctx context.Context, resourceID uuid.UUID) error {
	res, err := s.resRepo.GetByID(ctx, nil, resourceID)
	if err != nil {
		return err
	}
	if res == nil {
		return apierr.New(http.StatusNotFound, "resource_not_found", fmt.Errorf("resource %s not found", resourceID))
	}
	return nil
}
