package app

import (
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/jobs"
	"github.com/coursebuilder/backend/internal/jobs/pipeline"
	"github.com/coursebuilder/backend/internal/jobs/runtime"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/services"
	"github.com/coursebuilder/backend/internal/temporalx"
)

type Services struct {
	Auth        services.AuthService
	Ability     services.AbilityService
	Content     services.ContentService
	Tree        services.TreeService
	Cache       services.CacheService
	Search      services.SearchService
	Video       services.VideoService
	Progress    services.ProgressService
	Entitlement services.EntitlementService
	Commerce    services.CommerceService
	Jobs        services.JobService
	JobRegistry *runtime.Registry
	JobWorker   *jobs.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients) (Services, error) {
	log.Info("Wiring services...")

	cache := services.NewCacheService(c.Redis, log)

	var starter services.WorkflowStarter
	if c.Temporal != nil {
		starter = temporalx.NewStarter(c.Temporal, log)
	}
	jobSvc := services.NewJobService(db, log, r.JobRun, starter)

	auth := services.NewAuthService(db, log, r.User, r.UserToken, cfg.JWTSecretKey)
	ability := services.NewAbilityService(db, log, r.User, r.Organization, r.Entitlement)
	content := services.NewContentService(db, log, r.ContentResource, r.ResourceEdge, jobSvc, cache)
	tree := services.NewTreeService(db, log, r.ContentResource, r.ResourceEdge, cache)
	search := services.NewSearchService(c.Meili, log)
	if c.Meili != nil {
		if err := search.EnsureIndexes(); err != nil {
			log.Warn("Failed to ensure search indexes", "error", err)
		}
	}
	videoSvc := services.NewVideoService(db, log, r.ContentResource, jobSvc)
	progress := services.NewProgressService(db, log, r.Progress, r.ContentResource)
	entitlement := services.NewEntitlementService(db, log, r.Entitlement, r.Product, r.Purchase)
	commerce := services.NewCommerceService(db, log, r.User, r.Product, r.Purchase, entitlement, jobSvc)

	registry := runtime.NewRegistry()
	registry.Register(pipeline.NewVideoProcess(db, log, videoSvc, jobSvc, c.Video, c.Video))
	registry.Register(pipeline.NewSearchIndex(db, log, r.ContentResource, search))
	registry.Register(pipeline.NewEntitlementSync(db, log, entitlement))
	registry.Register(pipeline.NewNewPurchase(db, log, entitlement))

	worker := jobs.NewWorker(db, log, r.JobRun, registry)

	return Services{
		Auth:        auth,
		Ability:     ability,
		Content:     content,
		Tree:        tree,
		Cache:       cache,
		Search:      search,
		Video:       videoSvc,
		Progress:    progress,
		Entitlement: entitlement,
		Commerce:    commerce,
		Jobs:        jobSvc,
		JobRegistry: registry,
		JobWorker:   worker,
	}, nil
}
