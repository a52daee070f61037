package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/workflow"
)

// Workflow drives one job_run row to a terminal status by ticking the
// execution activity. The workflow id IS the job id; all durable state
// lives in the row, so the history stays tiny and a continue-as-new can
// restart cleanly at any point.
func Workflow(ctx workflow.Context) error {
	jobID := strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	if jobID == "" {
		return fmt.Errorf("jobrun: missing job_id")
	}

	const (
		tickInterval     = 2 * time.Second
		continueTickCap  = 2000
		historyLengthCap = 15000
	)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 24 * time.Hour,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy:         nil, // the job row carries its own retry budget
	})

	for ticks := 0; ; ticks++ {
		var out TickResult
		if err := workflow.ExecuteActivity(ctx, ActivityTick, jobID).Get(ctx, &out); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(out.Status)) {
		case "succeeded", "canceled":
			return nil
		case "failed":
			return fmt.Errorf("job failed (stage=%s)", out.Stage)
		}
		if err := workflow.Sleep(ctx, tickInterval); err != nil {
			return err
		}
		if ticks >= continueTickCap || workflow.GetInfo(ctx).GetCurrentHistoryLength() >= historyLengthCap {
			return workflow.NewContinueAsNewError(ctx, Workflow)
		}
	}
}
