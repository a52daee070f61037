package temporalx

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/temporalx/jobrun"
)

// Starter launches the job_run workflow for dispatched jobs. The
// workflow id is derived from the job id, so redispatching the same job
// dedupes instead of double-running it.
type Starter struct {
	tc  temporalsdkclient.Client
	log *logger.Logger
}

func NewStarter(tc temporalsdkclient.Client, log *logger.Logger) *Starter {
	return &Starter{tc: tc, log: log}
}

func (s *Starter) StartJobWorkflow(ctx context.Context, jobID uuid.UUID, jobType string) error {
	if s == nil || s.tc == nil {
		return fmt.Errorf("temporal client not configured")
	}
	cfg := LoadConfig()
	_, err := s.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                    jobID.String(),
		TaskQueue:             cfg.TaskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
	}, jobrun.WorkflowName)
	if err != nil {
		return fmt.Errorf("start workflow for job %s (%s): %w", jobID, jobType, err)
	}
	return nil
}
