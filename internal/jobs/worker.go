package jobs

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/jobs/runtime"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/types"
)

const (
	pollInterval = 1 * time.Second
	maxAttempts  = 5
	retryDelay   = 30 * time.Second
	staleRunning = 2 * time.Minute
)

// Worker polls for runnable job runs and hands each to its registered
// pipeline. Claiming is row-locked, so any number of workers can share
// the queue.
type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Tick(ctx)
			}
		}
	}()
}

// Tick claims and runs at most one job. Returns true when a job was
// claimed, so callers driving the worker externally know to tick again.
func (w *Worker) Tick(ctx context.Context) bool {
	job, err := w.repo.ClaimNextRunnable(ctx, w.db, maxAttempts, retryDelay, staleRunning)
	if err != nil {
		w.log.Warn("ClaimNextRunnable failed", "error", err)
		return false
	}
	if job == nil {
		return false
	}
	w.run(ctx, job)
	return true
}

func (w *Worker) run(ctx context.Context, job *types.JobRun) {
	jc := runtime.NewContext(ctx, w.db, job, w.repo)
	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered", "job_type", job.JobType, "job_id", job.ID)
		jc.Fail("dispatch", fmt.Errorf("no handler registered for job_type=%s", job.JobType))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
			jc.Fail("panic", fmt.Errorf("handler panic: %v", r))
		}
	}()

	if err := h.Run(jc); err != nil && !job.Terminal() {
		jc.Fail(job.Stage, err)
	}
}
