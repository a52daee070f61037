package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/types"
)

// GrantInput describes one content-access grant.
type GrantInput struct {
	UserID     uuid.UUID
	SourceType string
	SourceID   uuid.UUID
	ContentIDs []uuid.UUID
	ExpiresAt  *time.Time
}

type EntitlementService interface {
	Grant(ctx context.Context, tx *gorm.DB, in GrantInput) (*types.Entitlement, error)
	RevokeBySource(ctx context.Context, tx *gorm.DB, sourceType string, sourceID uuid.UUID) error
	ActiveForUser(ctx context.Context, userID uuid.UUID) ([]*types.Entitlement, error)
	// SyncProduct reconciles entitlements for a product against its valid
	// purchases: missing grants are created, grants for refunded purchases
	// are revoked.
	SyncProduct(ctx context.Context, productID uuid.UUID) (created, revoked int, err error)
	// HasAccess reports whether any active grant covers the resource.
	HasAccess(ctx context.Context, userID, resourceID uuid.UUID) (bool, error)
}

type entitlementService struct {
	db           *gorm.DB
	log          *logger.Logger
	entRepo      repos.EntitlementRepo
	productRepo  repos.ProductRepo
	purchaseRepo repos.PurchaseRepo
}

func NewEntitlementService(db *gorm.DB, baseLog *logger.Logger, entRepo repos.EntitlementRepo, productRepo repos.ProductRepo, purchaseRepo repos.PurchaseRepo) EntitlementService {
	return &entitlementService{
		db:           db,
		log:          baseLog.With("service", "EntitlementService"),
		entRepo:      entRepo,
		productRepo:  productRepo,
		purchaseRepo: purchaseRepo,
	}
}

func (s *entitlementService) Grant(ctx context.Context, tx *gorm.DB, in GrantInput) (*types.Entitlement, error) {
	if in.UserID == uuid.Nil {
		return nil, fmt.Errorf("grant entitlement: missing user id")
	}
	if in.SourceType == "" || in.SourceID == uuid.Nil {
		return nil, fmt.Errorf("grant entitlement: missing source")
	}

	meta := map[string]any{}
	if len(in.ContentIDs) > 0 {
		ids := make([]string, 0, len(in.ContentIDs))
		for _, id := range in.ContentIDs {
			ids = append(ids, id.String())
		}
		meta["contentIds"] = ids
	}
	ent := &types.Entitlement{
		ID:              uuid.New(),
		UserID:          in.UserID,
		EntitlementType: types.EntitlementTypeContentAccess,
		SourceType:      in.SourceType,
		SourceID:        in.SourceID,
		ExpiresAt:       in.ExpiresAt,
		Metadata:        types.MustJSON(meta),
	}
	if _, err := s.entRepo.Create(ctx, tx, []*types.Entitlement{ent}); err != nil {
		return nil, fmt.Errorf("grant entitlement: %w", err)
	}
	s.log.Info("Entitlement granted",
		"entitlement_id", ent.ID,
		"user_id", in.UserID,
		"source_type", in.SourceType,
		"source_id", in.SourceID)
	return ent, nil
}

func (s *entitlementService) RevokeBySource(ctx context.Context, tx *gorm.DB, sourceType string, sourceID uuid.UUID) error {
	if err := s.entRepo.SoftDeleteBySource(ctx, tx, sourceType, sourceID); err != nil {
		return fmt.Errorf("revoke entitlements: %w", err)
	}
	s.log.Info("Entitlements revoked", "source_type", sourceType, "source_id", sourceID)
	return nil
}

func (s *entitlementService) ActiveForUser(ctx context.Context, userID uuid.UUID) ([]*types.Entitlement, error) {
	return s.entRepo.GetActiveByUserID(ctx, nil, userID, time.Now().UTC())
}

func (s *entitlementService) HasAccess(ctx context.Context, userID, resourceID uuid.UUID) (bool, error) {
	ents, err := s.ActiveForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, ent := range ents {
		for _, id := range ent.ContentIDs() {
			if id == resourceID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *entitlementService) SyncProduct(ctx context.Context, productID uuid.UUID) (int, int, error) {
	product, err := s.productRepo.GetByID(ctx, nil, productID)
	if err != nil {
		return 0, 0, err
	}
	if product == nil {
		return 0, 0, fmt.Errorf("sync entitlements: product %s not found", productID)
	}

	purchases, err := s.purchaseRepo.GetValidByProductID(ctx, nil, productID)
	if err != nil {
		return 0, 0, err
	}
	valid := map[uuid.UUID]*types.Purchase{}
	for _, p := range purchases {
		valid[p.ID] = p
	}

	var created, revoked int
	err = s.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		for _, p := range purchases {
			existing, err := s.entRepo.GetBySource(ctx, transaction, types.EntitlementSourcePurchase, p.ID)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				continue
			}
			if _, err := s.Grant(ctx, transaction, GrantInput{
				UserID:     p.UserID,
				SourceType: types.EntitlementSourcePurchase,
				SourceID:   p.ID,
				ContentIDs: []uuid.UUID{product.ResourceID},
			}); err != nil {
				return err
			}
			created++
		}

		// Grants whose purchase is no longer valid get revoked.
		stale, err := s.staleSources(ctx, transaction, productID, valid)
		if err != nil {
			return err
		}
		for _, sourceID := range stale {
			if err := s.entRepo.SoftDeleteBySource(ctx, transaction, types.EntitlementSourcePurchase, sourceID); err != nil {
				return err
			}
			revoked++
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("sync entitlements: %w", err)
	}
	s.log.Info("Product entitlements synced", "product_id", productID, "created", created, "revoked", revoked)
	return created, revoked, nil
}

// staleSources finds purchase ids for this product that back a live
// entitlement but are absent from the valid set.
func (s *entitlementService) staleSources(ctx context.Context, tx *gorm.DB, productID uuid.UUID, valid map[uuid.UUID]*types.Purchase) ([]uuid.UUID, error) {
	all, err := s.purchaseRepo.GetByProductID(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	var stale []uuid.UUID
	for _, p := range all {
		if _, ok := valid[p.ID]; ok {
			continue
		}
		ents, err := s.entRepo.GetBySource(ctx, tx, types.EntitlementSourcePurchase, p.ID)
		if err != nil {
			return nil, err
		}
		if len(ents) > 0 {
			stale = append(stale, p.ID)
		}
	}
	return stale, nil
}
