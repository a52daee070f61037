package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/coursebuilder/backend/internal/clients/video"
	"github.com/coursebuilder/backend/internal/events"
	jobrt "github.com/coursebuilder/backend/internal/jobs/runtime"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/services"
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
	if err := db.AutoMigrate(
		&types.User{},
		&types.ContentResource{},
		&types.Product{},
		&types.Purchase{},
		&types.Entitlement{},
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

func runJob(t *testing.T, db *gorm.DB, h jobrt.Handler, payload any) *types.JobRun {
	t.Helper()
	repo := repos.NewJobRunRepo(db, logger.NewNop())
	raw := types.MustJSON(payload)
	job := &types.JobRun{
		ID:      uuid.New(),
		JobType: h.Type(),
		Status:  types.JobStatusRunning,
		Payload: datatypes.JSON(raw),
	}
	if _, err := repo.Create(context.Background(), nil, []*types.JobRun{job}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	jc := jobrt.NewContext(context.Background(), db, job, repo)
	if err := h.Run(jc); err != nil {
		t.Fatalf("run: %v", err)
	}
	stored, err := repo.GetByID(context.Background(), nil, job.ID)
	if err != nil || stored == nil {
		t.Fatalf("reload job: %v", err)
	}
	return stored
}

// fakeSearch records index and delete calls.
type fakeSearch struct {
	indexed []uuid.UUID
	deleted []uuid.UUID
}

func (f *fakeSearch) EnsureIndexes() error { return nil }

func (f *fakeSearch) IndexResource(ctx context.Context, res *types.ContentResource) error {
	if res.State() != types.StatePublished || !res.IsPublic() {
		return f.DeleteResource(ctx, res.ID)
	}
	f.indexed = append(f.indexed, res.ID)
	return nil
}

func (f *fakeSearch) DeleteResource(ctx context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSearch) Search(ctx context.Context, query, resourceType string, limit int) ([]services.SearchHit, error) {
	return nil, nil
}

var _ services.SearchService = (*fakeSearch)(nil)

func seedResource(t *testing.T, db *gorm.DB, state, visibility string) *types.ContentResource {
	t.Helper()
	res := &types.ContentResource{
		ID:   uuid.New(),
		Type: types.TypeLesson,
		Fields: types.MustJSON(map[string]any{
			"title":      "Lesson",
			"slug":       "lesson-" + uuid.NewString()[:6],
			"state":      state,
			"visibility": visibility,
		}),
	}
	if err := db.Create(res).Error; err != nil {
		t.Fatalf("seed resource: %v", err)
	}
	return res
}

func TestSearchIndexPipelineIndexesPublicResource(t *testing.T) {
	db := newTestDB(t)
	search := &fakeSearch{}
	res := seedResource(t, db, types.StatePublished, types.VisibilityPublic)
	h := NewSearchIndex(db, logger.NewNop(), repos.NewContentResourceRepo(db, logger.NewNop()), search)

	job := runJob(t, db, h, map[string]any{"resource_id": res.ID.String()})
	if job.Status != types.JobStatusSucceeded {
		t.Fatalf("status: %q error=%q", job.Status, job.Error)
	}
	if len(search.indexed) != 1 || search.indexed[0] != res.ID {
		t.Fatalf("indexed: %v", search.indexed)
	}
}

func TestSearchIndexPipelineRemovesDrafts(t *testing.T) {
	db := newTestDB(t)
	search := &fakeSearch{}
	res := seedResource(t, db, types.StateDraft, types.VisibilityPublic)
	h := NewSearchIndex(db, logger.NewNop(), repos.NewContentResourceRepo(db, logger.NewNop()), search)

	job := runJob(t, db, h, map[string]any{"resource_id": res.ID.String()})
	if job.Status != types.JobStatusSucceeded {
		t.Fatalf("status: %q", job.Status)
	}
	if len(search.deleted) != 1 || search.deleted[0] != res.ID {
		t.Fatalf("deleted: %v", search.deleted)
	}
}

func TestSearchIndexPipelineRemovesMissingResource(t *testing.T) {
	db := newTestDB(t)
	search := &fakeSearch{}
	h := NewSearchIndex(db, logger.NewNop(), repos.NewContentResourceRepo(db, logger.NewNop()), search)

	gone := uuid.New()
	job := runJob(t, db, h, map[string]any{"resource_id": gone.String()})
	if job.Status != types.JobStatusSucceeded {
		t.Fatalf("status: %q", job.Status)
	}
	if len(search.deleted) != 1 || search.deleted[0] != gone {
		t.Fatalf("deleted: %v", search.deleted)
	}
}

func TestSearchIndexPipelineFailsWithoutPayload(t *testing.T) {
	db := newTestDB(t)
	h := NewSearchIndex(db, logger.NewNop(), repos.NewContentResourceRepo(db, logger.NewNop()), &fakeSearch{})

	job := runJob(t, db, h, map[string]any{})
	if job.Status != types.JobStatusFailed {
		t.Fatalf("status: %q", job.Status)
	}
}

func TestEntitlementSyncPipeline(t *testing.T) {
	db := newTestDB(t)
	log := logger.NewNop()
	entRepo := repos.NewEntitlementRepo(db, log)
	productRepo := repos.NewProductRepo(db, log)
	purchaseRepo := repos.NewPurchaseRepo(db, log)
	ents := services.NewEntitlementService(db, log, entRepo, productRepo, purchaseRepo)

	resource := seedResource(t, db, types.StatePublished, types.VisibilityPublic)
	product := &types.Product{ID: uuid.New(), ResourceID: resource.ID, Name: "P", StripePriceID: "price_x"}
	if _, err := productRepo.Create(context.Background(), nil, []*types.Product{product}); err != nil {
		t.Fatalf("product: %v", err)
	}
	buyer := &types.User{ID: uuid.New(), Email: "b@x.co", Password: "x"}
	if err := db.Create(buyer).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	purchase := &types.Purchase{ID: uuid.New(), UserID: buyer.ID, ProductID: product.ID, Status: types.PurchaseStatusValid, StripeSessionID: "cs_x"}
	if _, err := purchaseRepo.Create(context.Background(), nil, []*types.Purchase{purchase}); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	h := NewEntitlementSync(db, log, ents)
	job := runJob(t, db, h, map[string]any{"product_id": product.ID.String()})
	if job.Status != types.JobStatusSucceeded {
		t.Fatalf("status: %q error=%q", job.Status, job.Error)
	}
	active, err := entRepo.GetActiveByUserID(context.Background(), nil, buyer.ID, purchase.PurchasedAt)
	if err != nil || len(active) != 1 {
		t.Fatalf("entitlements: n=%d err=%v", len(active), err)
	}
}

// fakeProvider serves asset info and transcripts without a network.
type fakeProvider struct {
	status     string
	assetErr   error
	transcript video.Transcript
}

func (f *fakeProvider) GetAsset(ctx context.Context, assetID string) (*video.AssetInfo, error) {
	if f.assetErr != nil {
		return nil, f.assetErr
	}
	return &video.AssetInfo{AssetID: assetID, PlaybackID: "play_1", Status: f.status, Duration: 12.5}, nil
}

func (f *fakeProvider) GetTranscript(ctx context.Context, assetID string) (*video.Transcript, error) {
	return &f.transcript, nil
}

// fakeJobs records follow-up dispatches from pipelines.
type fakeJobs struct {
	dispatched []events.Payload
}

func (f *fakeJobs) Dispatch(ctx context.Context, ownerUserID uuid.UUID, payload events.Payload) (*types.JobRun, error) {
	f.dispatched = append(f.dispatched, payload)
	return &types.JobRun{ID: uuid.New()}, nil
}

func (f *fakeJobs) GetByID(ctx context.Context, id uuid.UUID) (*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobs) GetLatestByEntity(ctx context.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobs) Cancel(ctx context.Context, id uuid.UUID) error { return nil }

var _ services.JobService = (*fakeJobs)(nil)

func TestVideoProcessPipeline(t *testing.T) {
	db := newTestDB(t)
	log := logger.NewNop()
	resRepo := repos.NewContentResourceRepo(db, log)
	jobs := &fakeJobs{}
	videos := services.NewVideoService(db, log, resRepo, jobs)

	res := &types.ContentResource{
		ID:   uuid.New(),
		Type: types.TypeVideoResource,
		Fields: types.MustJSON(map[string]any{
			"title":           "Clip",
			"slug":            "clip-abc",
			"muxAssetId":      "asset_1",
			"processingState": "processing",
		}),
	}
	if err := db.Create(res).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	provider := &fakeProvider{status: "ready", transcript: video.Transcript{Text: "hello", SRT: "1\nhello"}}
	h := NewVideoProcess(db, log, videos, jobs, provider, provider)

	job := runJob(t, db, h, map[string]any{
		"video_resource_id": res.ID.String(),
		"asset_id":          "asset_1",
	})
	if job.Status != types.JobStatusSucceeded {
		t.Fatalf("status: %q error=%q", job.Status, job.Error)
	}

	stored, err := resRepo.GetByID(context.Background(), nil, res.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.FieldString("processingState") != "ready" {
		t.Fatalf("processingState: %q", stored.FieldString("processingState"))
	}
	if stored.FieldString("transcript") != "hello" {
		t.Fatalf("transcript: %q", stored.FieldString("transcript"))
	}
	if stored.FieldString("muxPlaybackId") != "play_1" {
		t.Fatalf("playback: %q", stored.FieldString("muxPlaybackId"))
	}
	if len(jobs.dispatched) != 1 || jobs.dispatched[0].EventName() != events.ResourceIndexRequested {
		t.Fatalf("follow-up dispatches: %v", jobs.dispatched)
	}
}

func TestVideoProcessPipelineFailsOnEncodeError(t *testing.T) {
	db := newTestDB(t)
	log := logger.NewNop()
	resRepo := repos.NewContentResourceRepo(db, log)
	videos := services.NewVideoService(db, log, resRepo, &fakeJobs{})

	res := &types.ContentResource{
		ID:     uuid.New(),
		Type:   types.TypeVideoResource,
		Fields: types.MustJSON(map[string]any{"title": "Clip", "slug": "clip-err"}),
	}
	if err := db.Create(res).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	provider := &fakeProvider{status: "errored"}
	h := NewVideoProcess(db, log, videos, &fakeJobs{}, provider, provider)

	job := runJob(t, db, h, map[string]any{
		"video_resource_id": res.ID.String(),
		"asset_id":          "asset_bad",
	})
	if job.Status != types.JobStatusFailed {
		t.Fatalf("status: %q", job.Status)
	}
	if job.Stage != "asset" {
		t.Fatalf("stage: %q", job.Stage)
	}
}
