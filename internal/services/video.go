package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/apierr"
	"github.com/coursebuilder/backend/internal/events"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/types"
)

// VideoService links uploaded video assets to videoResource rows. The
// heavy lifting (polling the provider, transcripts) happens in the
// processing pipeline; AttachAsset just records the asset and queues it.
type VideoService interface {
	AttachAsset(ctx context.Context, videoResourceID uuid.UUID, assetID, playbackID string, ownerUserID uuid.UUID) (*types.JobRun, error)
	UpdateProcessingState(ctx context.Context, tx *gorm.DB, videoResourceID uuid.UUID, patch map[string]any) error
}

type videoService struct {
	db      *gorm.DB
	log     *logger.Logger
	resRepo repos.ContentResourceRepo
	jobs    JobService
}

func NewVideoService(db *gorm.DB, baseLog *logger.Logger, resRepo repos.ContentResourceRepo, jobs JobService) VideoService {
	return &videoService{
		db:      db,
		log:     baseLog.With("service", "VideoService"),
		resRepo: resRepo,
		jobs:    jobs,
	}
}

func (s *videoService) AttachAsset(ctx context.Context, videoResourceID uuid.UUID, assetID, playbackID string, ownerUserID uuid.UUID) (*types.JobRun, error) {
	res, err := s.resRepo.GetByID(ctx, nil, videoResourceID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, apierr.New(http.StatusNotFound, "resource_not_found", fmt.Errorf("video resource %s not found", videoResourceID))
	}
	if res.Type != types.TypeVideoResource {
		return nil, apierr.New(http.StatusBadRequest, "invalid_resource_type",
			fmt.Errorf("resource %s is a %s, not a %s", videoResourceID, res.Type, types.TypeVideoResource))
	}

	patch := map[string]any{
		"muxAssetId":      assetID,
		"processingState": "processing",
	}
	if playbackID != "" {
		patch["muxPlaybackId"] = playbackID
	}
	if err := s.UpdateProcessingState(ctx, nil, videoResourceID, patch); err != nil {
		return nil, err
	}

	job, err := s.jobs.Dispatch(ctx, ownerUserID, events.VideoAssetAttachedPayload{
		VideoResourceID: videoResourceID,
		AssetID:         assetID,
		PlaybackID:      playbackID,
		OwnerUserID:     ownerUserID,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Video asset attached", "resource_id", videoResourceID, "asset_id", assetID, "job_id", job.ID)
	return job, nil
}

// UpdateProcessingState merges a patch into the resource's fields.
// Pipelines call this as steps complete, so each write re-reads the row
// to avoid clobbering concurrent field updates.
func (s *videoService) UpdateProcessingState(ctx context.Context, tx *gorm.DB, videoResourceID uuid.UUID, patch map[string]any) error {
	res, err := s.resRepo.GetByID(ctx, tx, videoResourceID)
	if err != nil {
		return err
	}
	if res == nil {
		return apierr.New(http.StatusNotFound, "resource_not_found", fmt.Errorf("video resource %s not found", videoResourceID))
	}
	fields := res.FieldsMap()
	for k, v := range patch {
		fields[k] = v
	}
	return s.resRepo.UpdateFields(ctx, tx, videoResourceID, types.MustJSON(fields))
}
