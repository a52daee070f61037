package runtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/types"
)

// Context is the execution handle for one claimed job run. It wraps the
// database, the in-memory job_run row and the only sanctioned ways to
// report progress or terminate execution. Pipelines never write job_run
// directly; they go through this object, and every write is guarded so a
// job canceled mid-flight is not overwritten.
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	payload map[string]any
}

// NewContext eagerly decodes the job payload so handlers can read inputs
// via Payload()/PayloadUUID(). A malformed payload decodes to an empty
// map; handlers validate required fields themselves.
func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo) *Context {
	c := &Context{
		Ctx:  ctx,
		DB:   db,
		Job:  job,
		Repo: repo,
	}
	c.decodePayload()
	return c
}

func (c *Context) decodePayload() {
	c.payload = map[string]any{}
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		return
	}
	c.payload = m
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// PayloadUUID reads a payload field and parses it as a UUID. Returns
// (uuid.Nil, false) when missing or unparseable, keeping id validation
// out of pipelines.
func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	s, ok := v.(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// PayloadString reads a payload field as a string, empty when absent.
func (c *Context) PayloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Canceled re-reads the row's status. Long steps poll this between
// checkpoints so a cancel takes effect before the next expensive call.
func (c *Context) Canceled() bool {
	if c.Repo == nil || c.Job == nil {
		return false
	}
	fresh, err := c.Repo.GetByID(c.Ctx, nil, c.Job.ID)
	if err != nil || fresh == nil {
		return false
	}
	return fresh.Status == types.JobStatusCanceled
}

// Progress publishes a non-terminal checkpoint: stage, percentage and a
// heartbeat. The stage string is the resume point for a retried run.
func (c *Context) Progress(stage string, pct int) {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now().UTC()
	ok, err := c.Repo.UpdateFieldsUnlessStatus(c.Ctx, nil, c.Job.ID, []string{types.JobStatusCanceled}, map[string]any{
		"stage":        stage,
		"progress":     pct,
		"heartbeat_at": now,
		"updated_at":   now,
	})
	if err != nil || !ok {
		return
	}
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now
}

// Fail marks the run terminally failed at the given stage and releases
// the lock so a retry can claim it.
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now().UTC()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	ok, uErr := c.Repo.UpdateFieldsUnlessStatus(c.Ctx, nil, c.Job.ID, []string{types.JobStatusCanceled}, map[string]any{
		"status":        types.JobStatusFailed,
		"stage":         stage,
		"error":         msg,
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	})
	if uErr != nil || !ok {
		return
	}
	c.Job.Status = types.JobStatusFailed
	c.Job.Stage = stage
	c.Job.Error = msg
	c.Job.LastErrorAt = &now
	c.Job.LockedAt = nil
	c.Job.UpdatedAt = now
}

// Succeed marks the run terminally succeeded and stores the result.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now().UTC()
	var res datatypes.JSON
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			res = datatypes.JSON(b)
		}
	}
	ok, err := c.Repo.UpdateFieldsUnlessStatus(c.Ctx, nil, c.Job.ID, []string{types.JobStatusCanceled}, map[string]any{
		"status":       types.JobStatusSucceeded,
		"stage":        finalStage,
		"progress":     100,
		"error":        "",
		"result":       res,
		"locked_at":    nil,
		"heartbeat_at": now,
		"updated_at":   now,
	})
	if err != nil || !ok {
		return
	}
	c.Job.Status = types.JobStatusSucceeded
	c.Job.Stage = finalStage
	c.Job.Progress = 100
	c.Job.Error = ""
	c.Job.Result = res
	c.Job.LockedAt = nil
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now
}
