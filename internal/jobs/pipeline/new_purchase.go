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

// NewPurchase runs the post-purchase follow-up: a product-wide
// entitlement sync covering the purchase that triggered it. The webhook
// already granted access synchronously; this pass repairs anything a
// crash between the grant and the response left behind.
type NewPurchase struct {
	db           *gorm.DB
	log          *logger.Logger
	entitlements services.EntitlementService
}

func NewNewPurchase(db *gorm.DB, baseLog *logger.Logger, entitlements services.EntitlementService) *NewPurchase {
	return &NewPurchase{
		db:           db,
		log:          baseLog.With("job", events.NewPurchaseCreated),
		entitlements: entitlements,
	}
}

func (p *NewPurchase) Type() string { return events.NewPurchaseCreated }

func (p *NewPurchase) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p.entitlements == nil {
		jc.Fail("validate", fmt.Errorf("purchase pipeline not configured"))
		return nil
	}
	productID, ok := jc.PayloadUUID("product_id")
	if !ok || productID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing product_id"))
		return nil
	}

	jc.Progress("sync", 30)
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
