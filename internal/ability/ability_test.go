package ability

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/coursebuilder/backend/internal/types"
)

func userWithRoles(roles ...string) *types.User {
	u := &types.User{ID: uuid.New()}
	if len(roles) > 0 {
		u.Role = roles[0]
	}
	if len(roles) > 1 {
		u.Roles = types.MustJSON(roles[1:])
	}
	return u
}

func TestNoRoleUserCannotUpdateContent(t *testing.T) {
	a := Build(Input{User: userWithRoles()})
	if a.Can(ActionUpdate, SubjectContent) {
		t.Fatalf("user with no role must not update Content")
	}
	if a.Can(ActionCreate, SubjectContent) {
		t.Fatalf("user with no role must not create Content")
	}
}

func TestAnonymousGetsMinimalRuleSet(t *testing.T) {
	a := Build(Input{})
	rules := a.Rules()
	if len(rules) != 1 {
		t.Fatalf("anonymous rule count: want=1 got=%d", len(rules))
	}
	public := Target{ID: uuid.New(), State: types.StatePublished, Visibility: types.VisibilityPublic}
	if !a.Can(ActionRead, SubjectContent, public) {
		t.Fatalf("anonymous must read public published content")
	}
	private := Target{ID: uuid.New(), State: types.StatePublished, Visibility: types.VisibilityPrivate}
	if a.Can(ActionRead, SubjectContent, private) {
		t.Fatalf("anonymous must not read private content")
	}
	draft := Target{ID: uuid.New(), State: types.StateDraft, Visibility: types.VisibilityPublic}
	if a.Can(ActionRead, SubjectContent, draft) {
		t.Fatalf("anonymous must not read drafts")
	}
}

func TestAdminAndOwnerManageAll(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleOwner} {
		a := Build(Input{User: userWithRoles(role)})
		if !a.Can(ActionManage, SubjectAll) {
			t.Fatalf("%s: expected manage all", role)
		}
		if !a.Can(ActionDelete, SubjectContent, Target{ID: uuid.New()}) {
			t.Fatalf("%s: manage all must cover delete Content", role)
		}
	}
}

func TestRoleGrantRevokeRoundTrip(t *testing.T) {
	u := userWithRoles()
	before := Build(Input{User: u}).Rules()

	u.Roles = types.MustJSON([]string{RoleEditor})
	granted := Build(Input{User: u}).Rules()
	if reflect.DeepEqual(before, granted) {
		t.Fatalf("granting a role must change the rule set")
	}

	u.Roles = datatypes.JSON(nil)
	after := Build(Input{User: u}).Rules()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("revoking the role must restore the pre-grant rule set\nbefore=%v\nafter=%v", before, after)
	}
}

func TestContributorUpdatesOwnContentOnly(t *testing.T) {
	u := userWithRoles(RoleContributor)
	a := Build(Input{User: u})

	own := Target{ID: uuid.New(), CreatedByID: u.ID}
	other := Target{ID: uuid.New(), CreatedByID: uuid.New()}

	if !a.Can(ActionUpdate, SubjectContent, own) {
		t.Fatalf("contributor must update own content")
	}
	if a.Can(ActionUpdate, SubjectContent, other) {
		t.Fatalf("contributor must not update others' content")
	}
	if !a.Can(ActionCreate, SubjectContent) {
		t.Fatalf("contributor must create content")
	}
}

func TestEntitlementGrantsReadOnSpecificIDs(t *testing.T) {
	u := userWithRoles()
	grantedID := uuid.New()
	otherID := uuid.New()
	ent := &types.Entitlement{
		UserID:          u.ID,
		EntitlementType: types.EntitlementTypeContentAccess,
		Metadata:        types.MustJSON(map[string]any{"contentIds": []string{grantedID.String()}}),
	}
	a := Build(Input{User: u, Entitlements: []*types.Entitlement{ent}})

	if !a.Can(ActionRead, SubjectContent, Target{ID: grantedID, State: types.StateDraft, Visibility: types.VisibilityPrivate}) {
		t.Fatalf("entitled user must read granted resource regardless of visibility")
	}
	if a.Can(ActionRead, SubjectContent, Target{ID: otherID, State: types.StateDraft, Visibility: types.VisibilityPrivate}) {
		t.Fatalf("entitlement must not leak to other resources")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	u := userWithRoles(RoleContributor, RoleEditor)
	ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	ent := &types.Entitlement{
		UserID:          u.ID,
		EntitlementType: types.EntitlementTypeContentAccess,
		Metadata:        types.MustJSON(map[string]any{"contentIds": ids}),
	}
	in := Input{User: u, Entitlements: []*types.Entitlement{ent}}
	first := Build(in).Rules()
	for i := 0; i < 5; i++ {
		if got := Build(in).Rules(); !reflect.DeepEqual(first, got) {
			t.Fatalf("rule set must be deterministic, run %d differed", i)
		}
	}
}
