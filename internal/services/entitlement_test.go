package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/types"
)

type entitlementFixture struct {
	db        *gorm.DB
	svc       EntitlementService
	ents      repos.EntitlementRepo
	users     repos.UserRepo
	products  repos.ProductRepo
	purchases repos.PurchaseRepo
}

func newEntitlementFixture(t *testing.T) *entitlementFixture {
	t.Helper()
	db := newTestDB(t)
	entRepo := repos.NewEntitlementRepo(db, logger.NewNop())
	productRepo := repos.NewProductRepo(db, logger.NewNop())
	purchaseRepo := repos.NewPurchaseRepo(db, logger.NewNop())
	return &entitlementFixture{
		db:        db,
		svc:       NewEntitlementService(db, logger.NewNop(), entRepo, productRepo, purchaseRepo),
		ents:      entRepo,
		users:     repos.NewUserRepo(db, logger.NewNop()),
		products:  productRepo,
		purchases: purchaseRepo,
	}
}

func (f *entitlementFixture) seedUser(t *testing.T) *types.User {
	t.Helper()
	user := &types.User{ID: uuid.New(), Email: uuid.NewString() + "@test.dev", Password: "x"}
	if _, err := f.users.Create(context.Background(), nil, []*types.User{user}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (f *entitlementFixture) seedProduct(t *testing.T) *types.Product {
	t.Helper()
	ctx := context.Background()
	resource := &types.ContentResource{
		ID:   uuid.New(),
		Type: types.TypeProduct,
		Fields: types.MustJSON(map[string]any{
			"title": "Workshop Bundle",
			"slug":  "workshop-bundle-" + uuid.NewString()[:6],
		}),
	}
	if err := f.db.Create(resource).Error; err != nil {
		t.Fatalf("create product resource: %v", err)
	}
	product := &types.Product{
		ID:            uuid.New(),
		ResourceID:    resource.ID,
		Name:          "Workshop Bundle",
		StripePriceID: "price_" + uuid.NewString()[:8],
		UnitAmount:    5000,
		Currency:      "usd",
	}
	if _, err := f.products.Create(ctx, nil, []*types.Product{product}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func (f *entitlementFixture) seedPurchase(t *testing.T, userID, productID uuid.UUID, status string) *types.Purchase {
	t.Helper()
	p := &types.Purchase{
		ID:              uuid.New(),
		UserID:          userID,
		ProductID:       productID,
		Status:          status,
		StripeSessionID: "cs_" + uuid.NewString()[:8],
	}
	if _, err := f.purchases.Create(context.Background(), nil, []*types.Purchase{p}); err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	return p
}

func TestGrantAndActiveForUser(t *testing.T) {
	f := newEntitlementFixture(t)
	ctx := context.Background()
	user := f.seedUser(t)
	contentID := uuid.New()

	ent, err := f.svc.Grant(ctx, nil, GrantInput{
		UserID:     user.ID,
		SourceType: types.EntitlementSourceManual,
		SourceID:   uuid.New(),
		ContentIDs: []uuid.UUID{contentID},
	})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	ids := ent.ContentIDs()
	if len(ids) != 1 || ids[0] != contentID {
		t.Fatalf("content ids: %v", ids)
	}

	active, err := f.svc.ActiveForUser(ctx, user.ID)
	if err != nil || len(active) != 1 {
		t.Fatalf("active: n=%d err=%v", len(active), err)
	}
}

func TestExpiredEntitlementIsNotActive(t *testing.T) {
	f := newEntitlementFixture(t)
	ctx := context.Background()
	user := f.seedUser(t)
	past := time.Now().UTC().Add(-time.Hour)

	if _, err := f.svc.Grant(ctx, nil, GrantInput{
		UserID:     user.ID,
		SourceType: types.EntitlementSourceManual,
		SourceID:   uuid.New(),
		ExpiresAt:  &past,
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	active, err := f.svc.ActiveForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expired grant counted as active: %d", len(active))
	}
}

func TestHasAccessHonorsExpiry(t *testing.T) {
	f := newEntitlementFixture(t)
	ctx := context.Background()
	user := f.seedUser(t)
	contentID := uuid.New()
	future := time.Now().UTC().Add(time.Hour)

	if _, err := f.svc.Grant(ctx, nil, GrantInput{
		UserID:     user.ID,
		SourceType: types.EntitlementSourceManual,
		SourceID:   uuid.New(),
		ContentIDs: []uuid.UUID{contentID},
		ExpiresAt:  &future,
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	ok, err := f.svc.HasAccess(ctx, user.ID, contentID)
	if err != nil {
		t.Fatalf("has access: %v", err)
	}
	if !ok {
		t.Fatal("active grant does not give access")
	}
	ok, err = f.svc.HasAccess(ctx, user.ID, uuid.New())
	if err != nil {
		t.Fatalf("has access: %v", err)
	}
	if ok {
		t.Fatal("ungranted resource accessible")
	}

	past := time.Now().UTC().Add(-time.Hour)
	otherID := uuid.New()
	if _, err := f.svc.Grant(ctx, nil, GrantInput{
		UserID:     user.ID,
		SourceType: types.EntitlementSourceManual,
		SourceID:   uuid.New(),
		ContentIDs: []uuid.UUID{otherID},
		ExpiresAt:  &past,
	}); err != nil {
		t.Fatalf("grant expired: %v", err)
	}
	ok, err = f.svc.HasAccess(ctx, user.ID, otherID)
	if err != nil {
		t.Fatalf("has access: %v", err)
	}
	if ok {
		t.Fatal("expired grant gives access")
	}
}

func TestSyncProductCreatesMissingGrants(t *testing.T) {
	f := newEntitlementFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t)
	buyer := f.seedUser(t)
	f.seedPurchase(t, buyer.ID, product.ID, types.PurchaseStatusValid)

	created, revoked, err := f.svc.SyncProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if created != 1 || revoked != 0 {
		t.Fatalf("first sync: created=%d revoked=%d", created, revoked)
	}

	// A second sync finds nothing to do.
	created, revoked, err = f.svc.SyncProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if created != 0 || revoked != 0 {
		t.Fatalf("second sync: created=%d revoked=%d", created, revoked)
	}
}

func TestSyncProductRevokesRefundedPurchases(t *testing.T) {
	f := newEntitlementFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t)
	buyer := f.seedUser(t)
	purchase := f.seedPurchase(t, buyer.ID, product.ID, types.PurchaseStatusValid)

	if _, _, err := f.svc.SyncProduct(ctx, product.ID); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := f.purchases.UpdateStatus(ctx, nil, purchase.ID, types.PurchaseStatusRefunded); err != nil {
		t.Fatalf("refund: %v", err)
	}

	created, revoked, err := f.svc.SyncProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("sync after refund: %v", err)
	}
	if created != 0 || revoked != 1 {
		t.Fatalf("sync after refund: created=%d revoked=%d", created, revoked)
	}
	active, err := f.svc.ActiveForUser(ctx, buyer.ID)
	if err != nil || len(active) != 0 {
		t.Fatalf("active after revoke: n=%d err=%v", len(active), err)
	}
}

func TestSyncProductUnknownProduct(t *testing.T) {
	f := newEntitlementFixture(t)
	if _, _, err := f.svc.SyncProduct(context.Background(), uuid.New()); err == nil {
		t.Fatal("want error for unknown product")
	}
}
