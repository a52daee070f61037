package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/clients/video"
	"github.com/coursebuilder/backend/internal/events"
	jobrt "github.com/coursebuilder/backend/internal/jobs/runtime"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/services"
)

const (
	assetPollInterval = 5 * time.Second
	assetPollLimit    = 60
)

// VideoProcess drives an attached video asset to a playable state: wait
// for the provider to finish encoding, record playback metadata, fetch
// the transcript, then mark the resource ready and queue a reindex.
type VideoProcess struct {
	db       *gorm.DB
	log      *logger.Logger
	videos   services.VideoService
	jobs     services.JobService
	assets   video.AssetInfoProvider
	captions video.TranscriptProvider
}

func NewVideoProcess(db *gorm.DB, baseLog *logger.Logger, videos services.VideoService, jobs services.JobService, assets video.AssetInfoProvider, captions video.TranscriptProvider) *VideoProcess {
	return &VideoProcess{
		db:       db,
		log:      baseLog.With("job", events.VideoAssetAttached),
		videos:   videos,
		jobs:     jobs,
		assets:   assets,
		captions: captions,
	}
}

func (p *VideoProcess) Type() string { return events.VideoAssetAttached }

func (p *VideoProcess) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p.videos == nil || p.assets == nil {
		jc.Fail("validate", fmt.Errorf("video pipeline not configured"))
		return nil
	}
	resourceID, ok := jc.PayloadUUID("video_resource_id")
	if !ok || resourceID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing video_resource_id"))
		return nil
	}
	assetID := jc.PayloadString("asset_id")
	if assetID == "" {
		jc.Fail("validate", fmt.Errorf("missing asset_id"))
		return nil
	}

	// Stage checkpoints let a retried run skip work it already finished.
	resume := jc.Job.Stage

	var info *video.AssetInfo
	if stageBefore(resume, "transcript") {
		jc.Progress("asset", 10)
		var err error
		info, err = p.awaitAsset(jc, assetID)
		if err != nil {
			jc.Fail("asset", err)
			return nil
		}
		patch := map[string]any{
			"muxPlaybackId": info.PlaybackID,
			"duration":      info.Duration,
		}
		if err := p.videos.UpdateProcessingState(jc.Ctx, nil, resourceID, patch); err != nil {
			jc.Fail("asset", err)
			return nil
		}
	}

	jc.Progress("transcript", 60)
	if p.captions != nil {
		transcript, err := p.captions.GetTranscript(jc.Ctx, assetID)
		if err != nil {
			jc.Fail("transcript", err)
			return nil
		}
		patch := map[string]any{
			"transcript": transcript.Text,
			"srt":        transcript.SRT,
		}
		if err := p.videos.UpdateProcessingState(jc.Ctx, nil, resourceID, patch); err != nil {
			jc.Fail("transcript", err)
			return nil
		}
	}

	jc.Progress("finalize", 90)
	if err := p.videos.UpdateProcessingState(jc.Ctx, nil, resourceID, map[string]any{
		"processingState": "ready",
	}); err != nil {
		jc.Fail("finalize", err)
		return nil
	}
	if p.jobs != nil {
		if _, err := p.jobs.Dispatch(jc.Ctx, jc.Job.OwnerUserID, events.ResourceIndexRequestedPayload{ResourceID: resourceID}); err != nil {
			p.log.Warn("Reindex dispatch failed", "error", err, "resource_id", resourceID)
		}
	}

	jc.Succeed("done", map[string]any{
		"video_resource_id": resourceID.String(),
		"asset_id":          assetID,
	})
	return nil
}

// awaitAsset polls the provider until the asset is ready, respecting
// cancellation between polls.
func (p *VideoProcess) awaitAsset(jc *jobrt.Context, assetID string) (*video.AssetInfo, error) {
	for attempt := 0; attempt < assetPollLimit; attempt++ {
		if jc.Canceled() {
			return nil, fmt.Errorf("job canceled")
		}
		info, err := p.assets.GetAsset(jc.Ctx, assetID)
		if err != nil {
			return nil, err
		}
		switch info.Status {
		case "ready":
			return info, nil
		case "errored":
			return nil, fmt.Errorf("asset %s failed to encode", assetID)
		}
		select {
		case <-jc.Ctx.Done():
			return nil, jc.Ctx.Err()
		case <-time.After(assetPollInterval):
		}
	}
	return nil, fmt.Errorf("asset %s not ready after %d polls", assetID, assetPollLimit)
}

// stageBefore reports whether the recorded checkpoint is earlier than
// the named stage in this pipeline's order.
func stageBefore(recorded, stage string) bool {
	order := map[string]int{"": 0, "asset": 1, "transcript": 2, "finalize": 3, "done": 4}
	return order[recorded] < order[stage]
}
