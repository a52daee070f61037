package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/types"
)

type JobRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, jobs []*types.JobRun) ([]*types.JobRun, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.JobRun, error)
	GetLatestByEntity(ctx context.Context, tx *gorm.DB, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error)
	ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.JobRun, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error
	UpdateFieldsUnlessStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, excludedStatuses []string, updates map[string]any) (bool, error)
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{db: db, log: baseLog.With("repo", "JobRunRepo")}
}

func (r *jobRunRepo) Create(ctx context.Context, tx *gorm.DB, jobs []*types.JobRun) ([]*types.JobRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(jobs) == 0 {
		return []*types.JobRun{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.JobRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var job types.JobRun
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRunRepo) GetLatestByEntity(ctx context.Context, tx *gorm.DB, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if entityType == "" || entityID == uuid.Nil || jobType == "" {
		return nil, nil
	}
	var job types.JobRun
	err := transaction.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ? AND job_type = ?", entityType, entityID, jobType).
		Order("created_at DESC").
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

// ClaimNextRunnable picks one runnable job and marks it running. Runnable
// means queued, or failed with attempts left past the retry delay, or
// running with a stale heartbeat (worker died mid-job). SKIP LOCKED keeps
// concurrent workers from claiming the same row.
func (r *jobRunRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.JobRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.JobRun
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
				(
					status = ?
					OR (
						status = ?
						AND attempts < ?
						AND (last_error_at IS NULL OR last_error_at < ?)
					)
					OR (
						status = ?
						AND heartbeat_at IS NOT NULL
						AND heartbeat_at < ?
					)
				)
			`, types.JobStatusQueued, types.JobStatusFailed, maxAttempts, retryCutoff, types.JobStatusRunning, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.JobRun{}).
			Where("id = ?", job.ID).
			Updates(map[string]any{
				"status":       types.JobStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = types.JobStatusRunning
		job.Attempts++
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(ctx).
		Model(&types.JobRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateFieldsUnlessStatus applies updates only when the row's status is
// outside the excluded set. Lets the runtime avoid overwriting a job that
// was canceled mid-flight.
func (r *jobRunRepo) UpdateFieldsUnlessStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, excludedStatuses []string, updates map[string]any) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return false, nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	q := transaction.WithContext(ctx).
		Model(&types.JobRun{}).
		Where("id = ?", id)
	if len(excludedStatuses) > 0 {
		q = q.Where("status NOT IN ?", excludedStatuses)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.JobRun{}).
		Where("id = ?", id).
		Update("heartbeat_at", time.Now().UTC()).Error
}
