package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.JobRun{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedJob(t *testing.T, repo repos.JobRunRepo, payload string) *types.JobRun {
	t.Helper()
	job := &types.JobRun{
		ID:      uuid.New(),
		JobType: "test/job",
		Status:  types.JobStatusRunning,
		Payload: datatypes.JSON(payload),
	}
	if _, err := repo.Create(context.Background(), nil, []*types.JobRun{job}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestProgressCheckpointsRow(t *testing.T) {
	db := newTestDB(t)
	repo := repos.NewJobRunRepo(db, logger.NewNop())
	job := seedJob(t, repo, `{}`)
	jc := NewContext(context.Background(), db, job, repo)

	jc.Progress("transcode", 40)

	stored, err := repo.GetByID(context.Background(), nil, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Stage != "transcode" || stored.Progress != 40 {
		t.Fatalf("checkpoint: stage=%q progress=%d", stored.Stage, stored.Progress)
	}
	if stored.HeartbeatAt == nil {
		t.Fatal("heartbeat not recorded")
	}
	if jc.Job.Stage != "transcode" {
		t.Fatalf("in-memory stage: %q", jc.Job.Stage)
	}
}

func TestSucceedStoresResult(t *testing.T) {
	db := newTestDB(t)
	repo := repos.NewJobRunRepo(db, logger.NewNop())
	job := seedJob(t, repo, `{}`)
	jc := NewContext(context.Background(), db, job, repo)

	jc.Succeed("done", map[string]any{"n": 3})

	stored, err := repo.GetByID(context.Background(), nil, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != types.JobStatusSucceeded || stored.Progress != 100 {
		t.Fatalf("terminal state: status=%q progress=%d", stored.Status, stored.Progress)
	}
	if len(stored.Result) == 0 {
		t.Fatal("result not stored")
	}
	if stored.LockedAt != nil {
		t.Fatal("lock not released")
	}
}

func TestFailRecordsError(t *testing.T) {
	db := newTestDB(t)
	repo := repos.NewJobRunRepo(db, logger.NewNop())
	job := seedJob(t, repo, `{}`)
	jc := NewContext(context.Background(), db, job, repo)

	jc.Fail("transcode", errors.New("encoder exploded"))

	stored, err := repo.GetByID(context.Background(), nil, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != types.JobStatusFailed {
		t.Fatalf("status: %q", stored.Status)
	}
	if stored.Error != "encoder exploded" || stored.LastErrorAt == nil {
		t.Fatalf("error record: %q at=%v", stored.Error, stored.LastErrorAt)
	}
}

func TestCanceledJobIsNotOverwritten(t *testing.T) {
	db := newTestDB(t)
	repo := repos.NewJobRunRepo(db, logger.NewNop())
	job := seedJob(t, repo, `{}`)
	jc := NewContext(context.Background(), db, job, repo)
	ctx := context.Background()

	if err := repo.UpdateFields(ctx, nil, job.ID, map[string]any{"status": types.JobStatusCanceled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !jc.Canceled() {
		t.Fatal("Canceled() should see the flip")
	}

	jc.Progress("late", 90)
	jc.Succeed("done", nil)
	jc.Fail("late", errors.New("too late"))

	stored, err := repo.GetByID(ctx, nil, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != types.JobStatusCanceled {
		t.Fatalf("canceled run overwritten to %q", stored.Status)
	}
}

func TestPayloadAccessors(t *testing.T) {
	db := newTestDB(t)
	repo := repos.NewJobRunRepo(db, logger.NewNop())
	id := uuid.New()
	job := seedJob(t, repo, fmt.Sprintf(`{"resource_id":%q,"note":"hi","bad":7}`, id))
	jc := NewContext(context.Background(), db, job, repo)

	got, ok := jc.PayloadUUID("resource_id")
	if !ok || got != id {
		t.Fatalf("uuid: ok=%v got=%s", ok, got)
	}
	if _, ok := jc.PayloadUUID("bad"); ok {
		t.Fatal("non-string field parsed as uuid")
	}
	if _, ok := jc.PayloadUUID("missing"); ok {
		t.Fatal("missing field parsed as uuid")
	}
	if jc.PayloadString("note") != "hi" {
		t.Fatalf("string: %q", jc.PayloadString("note"))
	}

	// A malformed payload decodes to an empty map rather than failing.
	broken := seedJob(t, repo, `{not json`)
	bc := NewContext(context.Background(), db, broken, repo)
	if len(bc.Payload()) != 0 {
		t.Fatalf("broken payload: %v", bc.Payload())
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	h := stubHandler{typ: "a/b"}
	if err := r.Register(h); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(h); err == nil {
		t.Fatal("duplicate registration allowed")
	}
	if _, ok := r.Get("a/b"); !ok {
		t.Fatal("handler not found")
	}
	if _, ok := r.Get("a/c"); ok {
		t.Fatal("unknown type found")
	}
}

type stubHandler struct{ typ string }

func (h stubHandler) Type() string           { return h.typ }
func (h stubHandler) Run(ctx *Context) error { return nil }
