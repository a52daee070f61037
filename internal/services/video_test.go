package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/coursebuilder/backend/internal/apierr"
	"github.com/coursebuilder/backend/internal/events"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/types"
)

func newVideoFixture(t *testing.T) (VideoService, ContentService, *fakeJobs) {
	t.Helper()
	db := newTestDB(t)
	resRepo := repos.NewContentResourceRepo(db, logger.NewNop())
	jobs := &fakeJobs{}
	content := NewContentService(db, logger.NewNop(), resRepo, repos.NewResourceEdgeRepo(db, logger.NewNop()), nil, nil)
	return NewVideoService(db, logger.NewNop(), resRepo, jobs), content, jobs
}

func TestAttachAssetPatchesFieldsAndDispatches(t *testing.T) {
	videos, content, jobs := newVideoFixture(t)
	ctx := context.Background()

	res, err := content.Create(ctx, nil, uuid.New(), CreateResourceInput{
		Type:   types.TypeVideoResource,
		Fields: json.RawMessage(`{"title":"Clip"}`),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := videos.AttachAsset(ctx, res.ID, "asset_1", "play_1", uuid.New()); err != nil {
		t.Fatalf("attach asset: %v", err)
	}

	stored, err := content.GetByID(ctx, nil, res.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.FieldString("muxAssetId") != "asset_1" {
		t.Fatalf("muxAssetId: %q", stored.FieldString("muxAssetId"))
	}
	if stored.FieldString("muxPlaybackId") != "play_1" {
		t.Fatalf("muxPlaybackId: %q", stored.FieldString("muxPlaybackId"))
	}
	if stored.FieldString("processingState") != "processing" {
		t.Fatalf("processingState: %q", stored.FieldString("processingState"))
	}
	if got := countDispatched(jobs, events.VideoAssetAttached); got != 1 {
		t.Fatalf("dispatches: %d", got)
	}
}

func TestAttachAssetRejectsNonVideoResource(t *testing.T) {
	videos, content, _ := newVideoFixture(t)
	ctx := context.Background()

	post, err := content.Create(ctx, nil, uuid.New(), CreateResourceInput{
		Type:   types.TypePost,
		Fields: json.RawMessage(`{"title":"Not a video"}`),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = videos.AttachAsset(ctx, post.ID, "asset_1", "", uuid.New())
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != "invalid_resource_type" {
		t.Fatalf("want invalid_resource_type, got %v", err)
	}
}
