package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/events"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/types"
)

// WorkflowStarter kicks off the durable execution that will drive a job
// run to completion. The poller-based worker needs no starter, so a nil
// starter just leaves the row queued.
type WorkflowStarter interface {
	StartJobWorkflow(ctx context.Context, jobID uuid.UUID, jobType string) error
}

// JobService turns domain events into durable job runs. Dispatch writes
// the run row first, so a crash after the write still leaves a queued
// job for the worker to pick up.
type JobService interface {
	Dispatch(ctx context.Context, ownerUserID uuid.UUID, payload events.Payload) (*types.JobRun, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.JobRun, error)
	GetLatestByEntity(ctx context.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

type jobService struct {
	db      *gorm.DB
	log     *logger.Logger
	repo    repos.JobRunRepo
	starter WorkflowStarter
}

func NewJobService(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, starter WorkflowStarter) JobService {
	return &jobService{
		db:      db,
		log:     baseLog.With("service", "JobService"),
		repo:    repo,
		starter: starter,
	}
}

func (s *jobService) Dispatch(ctx context.Context, ownerUserID uuid.UUID, payload events.Payload) (*types.JobRun, error) {
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", payload.EventName(), err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", payload.EventName(), err)
	}

	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     payload.EventName(),
		Status:      types.JobStatusQueued,
		Payload:     datatypes.JSON(raw),
	}
	job.EntityType, job.EntityID = entityRef(payload)

	if _, err := s.repo.Create(ctx, nil, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", payload.EventName(), err)
	}
	s.log.Info("Job dispatched", "job_id", job.ID, "job_type", job.JobType)

	if s.starter != nil {
		if err := s.starter.StartJobWorkflow(ctx, job.ID, job.JobType); err != nil {
			// The row is already queued; the polling worker covers the gap.
			s.log.Warn("Workflow start failed, job stays queued", "error", err, "job_id", job.ID)
		}
	}
	return job, nil
}

// entityRef pulls the primary entity out of a payload so runs can be
// looked up by the thing they operate on.
func entityRef(payload events.Payload) (string, *uuid.UUID) {
	switch p := payload.(type) {
	case events.VideoAssetAttachedPayload:
		return "content_resource", &p.VideoResourceID
	case events.ResourceIndexRequestedPayload:
		return "content_resource", &p.ResourceID
	case events.NewPurchaseCreatedPayload:
		return "purchase", &p.PurchaseID
	case events.SyncProductEntitlementsPayload:
		return "product", &p.ProductID
	}
	return "", nil
}

func (s *jobService) GetByID(ctx context.Context, id uuid.UUID) (*types.JobRun, error) {
	return s.repo.GetByID(ctx, nil, id)
}

func (s *jobService) GetLatestByEntity(ctx context.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	return s.repo.GetLatestByEntity(ctx, nil, entityType, entityID, jobType)
}

// Cancel marks a non-terminal run canceled. A worker already past claim
// will notice the status flip at its next checkpoint.
func (s *jobService) Cancel(ctx context.Context, id uuid.UUID) error {
	job, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if job == nil || job.Terminal() {
		return nil
	}
	now := time.Now().UTC()
	return s.repo.UpdateFields(ctx, nil, id, map[string]any{
		"status":     types.JobStatusCanceled,
		"updated_at": now,
	})
}
