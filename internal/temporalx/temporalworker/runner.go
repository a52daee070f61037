package temporalworker

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"gorm.io/gorm"

	jobrt "github.com/coursebuilder/backend/internal/jobs/runtime"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/temporalx"
	"github.com/coursebuilder/backend/internal/temporalx/jobrun"
	"github.com/coursebuilder/backend/internal/utils"
)

// Runner hosts the job_run workflow and its tick activity on the
// configured task queue.
type Runner struct {
	log      *logger.Logger
	tc       temporalsdkclient.Client
	db       *gorm.DB
	jobRepo  repos.JobRunRepo
	registry *jobrt.Registry
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, db *gorm.DB, jobRepo repos.JobRunRepo, registry *jobrt.Registry) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if db == nil || jobRepo == nil || registry == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{
		log:      log,
		tc:       tc,
		db:       db,
		jobRepo:  jobRepo,
		registry: registry,
	}, nil
}

func (r *Runner) Start(ctx context.Context) error {
	cfg := temporalx.LoadConfig()
	r.log.Info("Starting Temporal worker", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)

	deadline := time.Now().Add(60 * time.Second)
	backoff := 250 * time.Millisecond
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		w := r.newWorker(cfg)
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "task_queue", cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		if time.Now().After(deadline) {
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)
		time.Sleep(backoff)
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}

func (r *Runner) newWorker(cfg temporalx.Config) worker.Worker {
	concurrency := utils.GetEnvAsInt("WORKER_CONCURRENCY", 4, r.log)
	if concurrency < 1 {
		concurrency = 1
	}
	w := worker.New(r.tc, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})

	acts := &jobrun.Activities{
		Log:      r.log,
		DB:       r.db,
		Jobs:     r.jobRepo,
		Registry: r.registry,
	}
	w.RegisterWorkflowWithOptions(jobrun.Workflow, workflow.RegisterOptions{Name: jobrun.WorkflowName})
	w.RegisterActivityWithOptions(acts.Tick, activity.RegisterOptions{Name: jobrun.ActivityTick})
	return w
}
