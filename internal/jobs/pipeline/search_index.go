package pipeline

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/events"
	jobrt "github.com/coursebuilder/backend/internal/jobs/runtime"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/services"
)

// SearchIndex refreshes one resource's search document. A resource that
// is gone or no longer publicly readable is removed from the index
// instead.
type SearchIndex struct {
	db      *gorm.DB
	log     *logger.Logger
	resRepo repos.ContentResourceRepo
	search  services.SearchService
}

func NewSearchIndex(db *gorm.DB, baseLog *logger.Logger, resRepo repos.ContentResourceRepo, search services.SearchService) *SearchIndex {
	return &SearchIndex{
		db:      db,
		log:     baseLog.With("job", events.ResourceIndexRequested),
		resRepo: resRepo,
		search:  search,
	}
}

func (p *SearchIndex) Type() string { return events.ResourceIndexRequested }

func (p *SearchIndex) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p.search == nil || p.resRepo == nil {
		jc.Fail("validate", fmt.Errorf("search pipeline not configured"))
		return nil
	}
	resourceID, ok := jc.PayloadUUID("resource_id")
	if !ok || resourceID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing resource_id"))
		return nil
	}

	jc.Progress("index", 20)
	res, err := p.resRepo.GetByID(jc.Ctx, nil, resourceID)
	if err != nil {
		jc.Fail("index", err)
		return nil
	}
	action := "indexed"
	if res == nil {
		if err := p.search.DeleteResource(jc.Ctx, resourceID); err != nil {
			jc.Fail("index", err)
			return nil
		}
		action = "removed"
	} else {
		if err := p.search.IndexResource(jc.Ctx, res); err != nil {
			jc.Fail("index", err)
			return nil
		}
		if !res.IsPublic() {
			action = "removed"
		}
	}

	jc.Succeed("done", map[string]any{
		"resource_id": resourceID.String(),
		"action":      action,
	})
	return nil
}
