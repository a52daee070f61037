package pipeline

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/events"
	jobrt "github.com/coursebuilder/backend/internal/jobs/runtime"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/services"
)

// EntitlementSync reconciles a product's entitlements against its valid
// purchases. The operation is idempotent, so replays and retries are
// safe.
type EntitlementSync struct {
	db           *gorm.DB
	log          *logger.Logger
	entitlements services.EntitlementService
}

func NewEntitlementSync(db *gorm.DB, baseLog *logger.Logger, entitlements services.EntitlementService) *EntitlementSync {
	return &EntitlementSync{
		db:           db,
		log:          baseLog.With("job", events.SyncProductEntitlements),
		entitlements: entitlements,
	}
}

func (p *EntitlementSync) Type() string { return events.SyncProductEntitlements }

func (p *EntitlementSync) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p.entitlements == nil {
		jc.Fail("validate", fmt.Errorf("entitlement pipeline not configured"))
		return nil
	}
	productID, ok := jc.PayloadUUID("product_id")
	if !ok || productID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing product_id"))
		return nil
	}

	jc.Progress("sync", 20)
	created, revoked, err := p.entitlements.SyncProduct(jc.Ctx, productID)
	if err != nil {
		jc.Fail("sync", err)
		return nil
	}

	jc.Succeed("done", map[string]any{
		"product_id": productID.String(),
		"created":    created,
		"revoked":    revoked,
	})
	return nil
}
