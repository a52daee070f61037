package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/coursebuilder/backend/internal/ability"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/types"
)

type abilityFixture struct {
	svc   AbilityService
	users repos.UserRepo
	orgs  repos.OrganizationRepo
	ents  EntitlementService
}

func newAbilityFixture(t *testing.T) abilityFixture {
	t.Helper()
	db := newTestDB(t)
	userRepo := repos.NewUserRepo(db, logger.NewNop())
	orgRepo := repos.NewOrganizationRepo(db, logger.NewNop())
	entRepo := repos.NewEntitlementRepo(db, logger.NewNop())
	ents := NewEntitlementService(db, logger.NewNop(), entRepo,
		repos.NewProductRepo(db, logger.NewNop()),
		repos.NewPurchaseRepo(db, logger.NewNop()))
	return abilityFixture{
		svc:   NewAbilityService(db, logger.NewNop(), userRepo, orgRepo, entRepo),
		users: userRepo,
		orgs:  orgRepo,
		ents:  ents,
	}
}

func TestForAnonymousReadsPublishedOnly(t *testing.T) {
	fx := newAbilityFixture(t)
	ab := fx.svc.ForAnonymous()

	public := ability.Target{ID: uuid.New(), State: types.StatePublished, Visibility: types.VisibilityPublic}
	draft := ability.Target{ID: uuid.New(), State: types.StateDraft, Visibility: types.VisibilityPublic}

	if !ab.Can(ability.ActionRead, ability.SubjectContent, public) {
		t.Fatal("anonymous cannot read published public content")
	}
	if ab.Can(ability.ActionRead, ability.SubjectContent, draft) {
		t.Fatal("anonymous can read drafts")
	}
	if ab.Can(ability.ActionCreate, ability.SubjectContent) {
		t.Fatal("anonymous can create content")
	}
}

func TestForUserUnknownFallsBackToAnonymous(t *testing.T) {
	fx := newAbilityFixture(t)

	ab, err := fx.svc.ForUser(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("for user: %v", err)
	}
	if ab.Can(ability.ActionCreate, ability.SubjectContent) {
		t.Fatal("unknown user treated as authenticated")
	}
}

func TestForUserAdminManagesEverything(t *testing.T) {
	fx := newAbilityFixture(t)
	ctx := context.Background()

	admin := &types.User{ID: uuid.New(), Email: "a@x.co", Password: "x", Role: "admin"}
	if _, err := fx.users.Create(ctx, nil, []*types.User{admin}); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	ab, err := fx.svc.ForUser(ctx, admin.ID)
	if err != nil {
		t.Fatalf("for user: %v", err)
	}
	target := ability.Target{ID: uuid.New(), State: types.StateDraft, Visibility: types.VisibilityPrivate}
	if !ab.Can(ability.ActionDelete, ability.SubjectContent, target) {
		t.Fatal("admin cannot delete a draft")
	}
	if !ab.Can(ability.ActionManage, ability.SubjectAll) {
		t.Fatal("admin lacks manage all")
	}
}

func TestForUserOrgAdminManagesContent(t *testing.T) {
	fx := newAbilityFixture(t)
	ctx := context.Background()

	member := &types.User{ID: uuid.New(), Email: "m@x.co", Password: "x", Role: "user"}
	if _, err := fx.users.Create(ctx, nil, []*types.User{member}); err != nil {
		t.Fatalf("create member: %v", err)
	}
	org, err := fx.orgs.Create(ctx, nil, &types.Organization{ID: uuid.New(), Name: "Acme School"})
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	if _, err := fx.orgs.AddMember(ctx, nil, &types.OrganizationMembership{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		UserID:         member.ID,
		Role:           "admin",
	}); err != nil {
		t.Fatalf("add member: %v", err)
	}

	ab, err := fx.svc.ForUser(ctx, member.ID)
	if err != nil {
		t.Fatalf("for user: %v", err)
	}
	draft := ability.Target{ID: uuid.New(), State: types.StateDraft, Visibility: types.VisibilityPrivate}
	if !ab.Can(ability.ActionUpdate, ability.SubjectContent, draft) {
		t.Fatal("org admin cannot edit content")
	}
	if ab.Can(ability.ActionManage, ability.SubjectAll) {
		t.Fatal("org admin has global manage")
	}
}

func TestForUserEntitlementGrantsRead(t *testing.T) {
	fx := newAbilityFixture(t)
	ctx := context.Background()

	user := &types.User{ID: uuid.New(), Email: "e@x.co", Password: "x", Role: "user"}
	if _, err := fx.users.Create(ctx, nil, []*types.User{user}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	contentID := uuid.New()
	if _, err := fx.ents.Grant(ctx, nil, GrantInput{
		UserID:     user.ID,
		SourceType: types.EntitlementSourceManual,
		SourceID:   uuid.New(),
		ContentIDs: []uuid.UUID{contentID},
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	ab, err := fx.svc.ForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("for user: %v", err)
	}
	owned := ability.Target{ID: contentID, State: types.StatePublished, Visibility: types.VisibilityUnlisted}
	other := ability.Target{ID: uuid.New(), State: types.StatePublished, Visibility: types.VisibilityUnlisted}
	if !ab.Can(ability.ActionRead, ability.SubjectContent, owned) {
		t.Fatal("entitled content not readable")
	}
	if ab.Can(ability.ActionRead, ability.SubjectContent, other) {
		t.Fatal("unrelated unlisted content readable")
	}
}
