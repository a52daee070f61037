package jobrun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"gorm.io/gorm"

	jobrt "github.com/coursebuilder/backend/internal/jobs/runtime"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/types"
)

type Activities struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Jobs     repos.JobRunRepo
	Registry *jobrt.Registry
}

// Tick loads the job, runs its handler if the row is still live, and
// reports the resulting status. Terminal rows short-circuit, which makes
// redelivered ticks harmless.
func (a *Activities) Tick(ctx context.Context, jobID string) (TickResult, error) {
	res := TickResult{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.DB == nil || a.Jobs == nil || a.Registry == nil {
		return res, fmt.Errorf("jobrun: activity not configured")
	}
	parsedID, err := uuid.Parse(res.JobID)
	if err != nil || parsedID == uuid.Nil {
		return res, fmt.Errorf("jobrun: invalid job_id %q", jobID)
	}

	job, err := a.Jobs.GetByID(ctx, nil, parsedID)
	if err != nil {
		return res, err
	}
	if job == nil {
		return res, fmt.Errorf("jobrun: job %s not found", parsedID)
	}
	if job.Terminal() {
		return fill(res, job), nil
	}

	stopHB := a.startHeartbeat(ctx, parsedID)
	defer stopHB()

	now := time.Now().UTC()
	if _, err := a.Jobs.UpdateFieldsUnlessStatus(ctx, nil, parsedID, []string{types.JobStatusCanceled}, map[string]any{
		"status":       types.JobStatusRunning,
		"attempts":     gorm.Expr("attempts + 1"),
		"locked_at":    now,
		"heartbeat_at": now,
		"updated_at":   now,
	}); err != nil {
		return res, err
	}
	job.Status = types.JobStatusRunning
	job.LockedAt = &now
	job.HeartbeatAt = &now

	jc := jobrt.NewContext(ctx, a.DB, job, a.Jobs)
	h, ok := a.Registry.Get(job.JobType)
	if !ok {
		jc.Fail("dispatch", fmt.Errorf("no handler registered for job_type=%s", job.JobType))
	} else {
		returnedClean := a.runHandler(jc, h, parsedID, job.JobType)
		if returnedClean && !jc.Job.Terminal() {
			// A handler that returns nil without reaching a terminal state
			// would park the row in "running" forever. Treat it as done.
			if a.Log != nil {
				a.Log.Warn("Handler returned without terminal status; marking succeeded", "job_id", parsedID, "job_type", job.JobType)
			}
			jc.Succeed(jc.Job.Stage, nil)
		}
	}

	updated, err := a.Jobs.GetByID(ctx, nil, parsedID)
	if err != nil {
		return res, err
	}
	if updated == nil {
		return res, fmt.Errorf("jobrun: job %s missing after tick", parsedID)
	}
	return fill(res, updated), nil
}

func (a *Activities) runHandler(jc *jobrt.Context, h jobrt.Handler, jobID uuid.UUID, jobType string) bool {
	clean := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				if a.Log != nil {
					a.Log.Error("Job handler panic", "job_id", jobID, "job_type", jobType, "panic", r)
				}
				jc.Fail("panic", fmt.Errorf("handler panic: %v", r))
			}
		}()
		if err := h.Run(jc); err != nil {
			jc.Fail(jc.Job.Stage, err)
			return
		}
		clean = true
	}()
	return clean
}

// startHeartbeat keeps both Temporal and the job row aware that the
// activity is alive while a handler runs.
func (a *Activities) startHeartbeat(ctx context.Context, jobID uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		temporalHB := time.NewTicker(10 * time.Second)
		defer temporalHB.Stop()
		dbHB := time.NewTicker(30 * time.Second)
		defer dbHB.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-temporalHB.C:
				activity.RecordHeartbeat(ctx)
			case <-dbHB.C:
				_ = a.Jobs.Heartbeat(ctx, nil, jobID)
			}
		}
	}()
	return func() { close(done) }
}

func fill(res TickResult, job *types.JobRun) TickResult {
	res.Status = job.Status
	res.Stage = job.Stage
	res.Progress = job.Progress
	return res
}
