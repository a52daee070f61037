package jobrun

const (
	WorkflowName = "job_run"
	ActivityTick = "job_run_tick"
)

// TickResult is what one activity tick reports back to the workflow.
type TickResult struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Stage    string `json:"stage,omitempty"`
	Progress int    `json:"progress,omitempty"`
}
