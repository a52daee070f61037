package app

import (
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
)

type Repos struct {
	User            repos.UserRepo
	UserToken       repos.UserTokenRepo
	Organization    repos.OrganizationRepo
	ContentResource repos.ContentResourceRepo
	ResourceEdge    repos.ResourceEdgeRepo
	Product         repos.ProductRepo
	Purchase        repos.PurchaseRepo
	Entitlement     repos.EntitlementRepo
	Progress        repos.ProgressRepo
	JobRun          repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:            repos.NewUserRepo(db, log),
		UserToken:       repos.NewUserTokenRepo(db, log),
		Organization:    repos.NewOrganizationRepo(db, log),
		ContentResource: repos.NewContentResourceRepo(db, log),
		ResourceEdge:    repos.NewResourceEdgeRepo(db, log),
		Product:         repos.NewProductRepo(db, log),
		Purchase:        repos.NewPurchaseRepo(db, log),
		Entitlement:     repos.NewEntitlementRepo(db, log),
		Progress:        repos.NewProgressRepo(db, log),
		JobRun:          repos.NewJobRunRepo(db, log),
	}
}
