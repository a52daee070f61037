package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/coursebuilder/backend/internal/events"
	"github.com/coursebuilder/backend/internal/types"
)

// newTestDB opens an isolated in-memory sqlite database. uuid defaults
// are Postgres-side, so everything inserted in tests sets IDs explicitly.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.Organization{},
		&types.OrganizationMembership{},
		&types.ContentResource{},
		&types.ContentResourceResource{},
		&types.Product{},
		&types.Purchase{},
		&types.Entitlement{},
		&types.ResourceProgress{},
		&types.JobRun{},
	); err != nil {
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

// fakeStarter records workflow start requests.
type fakeStarter struct {
	started []uuid.UUID
	err     error
}

func (f *fakeStarter) StartJobWorkflow(ctx context.Context, jobID uuid.UUID, jobType string) error {
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, jobID)
	return nil
}

var _ WorkflowStarter = (*fakeStarter)(nil)

// fakeJobs collects dispatched payloads without touching the database.
type fakeJobs struct {
	dispatched []events.Payload
}

func (f *fakeJobs) Dispatch(ctx context.Context, ownerUserID uuid.UUID, payload events.Payload) (*types.JobRun, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	f.dispatched = append(f.dispatched, payload)
	return &types.JobRun{ID: uuid.New(), JobType: payload.EventName(), Status: types.JobStatusQueued}, nil
}

func (f *fakeJobs) GetByID(ctx context.Context, id uuid.UUID) (*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobs) GetLatestByEntity(ctx context.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobs) Cancel(ctx context.Context, id uuid.UUID) error { return nil }

var _ JobService = (*fakeJobs)(nil)

func countDispatched(f *fakeJobs, name string) int {
	n := 0
	for _, p := range f.dispatched {
		if p.EventName() == name {
			n++
		}
	}
	return n
}
