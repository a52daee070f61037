// Package ability computes the set of permitted actions for a user in a
// given content context. The result is a serializable rule list shared
// with API clients, plus a compiled Ability answering Can/Cannot queries.
package ability

import (
	"sort"

	"github.com/google/uuid"

	"github.com/coursebuilder/backend/internal/types"
)

// Actions.
const (
	ActionManage  = "manage"
	ActionCreate  = "create"
	ActionRead    = "read"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionPublish = "publish"
)

// Subjects.
const (
	SubjectAll     = "all"
	SubjectContent = "Content"
	SubjectUser    = "User"
	SubjectProduct = "Product"
)

// Roles understood by the policy. Role strings come from both the legacy
// single-role column and the roles array.
const (
	RoleAdmin       = "admin"
	RoleOwner       = "owner"
	RoleEditor      = "editor"
	RoleContributor = "contributor"
	RoleUser        = "user"
)

// Conditions restricts a rule to rows matching every set field.
type Conditions struct {
	CreatedByID string   `json:"createdById,omitempty"`
	IDs         []string `json:"ids,omitempty"`
	State       string   `json:"state,omitempty"`
	Visibility  string   `json:"visibility,omitempty"`
}

// Rule is one permitted (action, subject) pair, optionally narrowed by
// conditions or a field allowlist.
type Rule struct {
	Action     string      `json:"action"`
	Subject    string      `json:"subject"`
	Conditions *Conditions `json:"conditions,omitempty"`
	Fields     []string    `json:"fields,omitempty"`
}

// Input is the request-scoped context rules are derived from. Everything
// is optional: a nil user yields the anonymous rule set.
type Input struct {
	User         *types.User
	Resource     *types.ContentResource
	Memberships  []*types.OrganizationMembership
	Entitlements []*types.Entitlement
}

// Target describes the row a Can query is asked about.
type Target struct {
	ID          uuid.UUID
	CreatedByID uuid.UUID
	State       string
	Visibility  string
}

// Ability is a compiled, immutable rule set.
type Ability struct {
	rules []Rule
}

// Rules returns the serializable rule list in a stable order.
func (a *Ability) Rules() []Rule {
	out := make([]Rule, len(a.rules))
	copy(out, a.rules)
	return out
}

// Can reports whether any rule permits action on subject for the given
// optional target. "manage" matches every action and "all" every subject.
func (a *Ability) Can(action, subject string, target ...Target) bool {
	var tgt *Target
	if len(target) > 0 {
		tgt = &target[0]
	}
	for _, r := range a.rules {
		if !actionMatches(r.Action, action) {
			continue
		}
		if r.Subject != SubjectAll && r.Subject != subject {
			continue
		}
		if conditionsMatch(r.Conditions, tgt) {
			return true
		}
	}
	return false
}

func (a *Ability) Cannot(action, subject string, target ...Target) bool {
	return !a.Can(action, subject, target...)
}

func actionMatches(ruleAction, asked string) bool {
	return ruleAction == ActionManage || ruleAction == asked
}

func conditionsMatch(c *Conditions, tgt *Target) bool {
	if c == nil {
		return true
	}
	// A conditioned rule needs a target to test against.
	if tgt == nil {
		return false
	}
	if c.CreatedByID != "" && c.CreatedByID != tgt.CreatedByID.String() {
		return false
	}
	if c.State != "" && c.State != tgt.State {
		return false
	}
	if c.Visibility != "" && c.Visibility != tgt.Visibility {
		return false
	}
	if len(c.IDs) > 0 {
		found := false
		for _, id := range c.IDs {
			if id == tgt.ID.String() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Build derives the rule set for the input. Deterministic: the same input
// always yields the same rules in the same order, so the result is safe
// to cache per request and to compare structurally.
func Build(in Input) *Ability {
	rules := []Rule{anonymousReadRule()}

	if in.User != nil {
		rules = append(rules, userRules(in.User)...)
		rules = append(rules, membershipRules(in.User, in.Memberships)...)
		rules = append(rules, entitlementRules(in.User, in.Entitlements)...)
	}

	return &Ability{rules: rules}
}

// anonymousReadRule is the floor every caller gets: read published,
// publicly visible content.
func anonymousReadRule() Rule {
	return Rule{
		Action:  ActionRead,
		Subject: SubjectContent,
		Conditions: &Conditions{
			State:      types.StatePublished,
			Visibility: types.VisibilityPublic,
		},
	}
}

func userRules(u *types.User) []Rule {
	var rules []Rule
	for _, role := range u.RoleNames() {
		switch role {
		case RoleAdmin, RoleOwner:
			rules = append(rules, Rule{Action: ActionManage, Subject: SubjectAll})
		case RoleEditor:
			rules = append(rules,
				Rule{Action: ActionManage, Subject: SubjectContent},
				Rule{Action: ActionRead, Subject: SubjectProduct},
			)
		case RoleContributor:
			rules = append(rules,
				Rule{Action: ActionCreate, Subject: SubjectContent},
				Rule{Action: ActionUpdate, Subject: SubjectContent,
					Conditions: &Conditions{CreatedByID: u.ID.String()}},
				Rule{Action: ActionDelete, Subject: SubjectContent,
					Conditions: &Conditions{CreatedByID: u.ID.String()}},
			)
		}
	}
	// Any signed-in user may read and update their own profile.
	rules = append(rules, Rule{
		Action:     ActionUpdate,
		Subject:    SubjectUser,
		Conditions: &Conditions{IDs: []string{u.ID.String()}},
	})
	return rules
}

// membershipRules grants organization-level editing rights. An admin or
// owner membership makes the member an editor of content; lesser
// membership roles add nothing beyond the base user rules.
func membershipRules(u *types.User, memberships []*types.OrganizationMembership) []Rule {
	var rules []Rule
	for _, m := range memberships {
		if m == nil || m.UserID != u.ID {
			continue
		}
		switch m.Role {
		case RoleAdmin, RoleOwner:
			rules = append(rules,
				Rule{Action: ActionManage, Subject: SubjectContent},
				Rule{Action: ActionRead, Subject: SubjectProduct},
			)
			// One qualifying membership is enough.
			return rules
		}
	}
	return rules
}

func entitlementRules(u *types.User, ents []*types.Entitlement) []Rule {
	idSet := map[string]bool{}
	for _, e := range ents {
		if e == nil || e.UserID != u.ID {
			continue
		}
		if e.EntitlementType != types.EntitlementTypeContentAccess {
			continue
		}
		for _, id := range e.ContentIDs() {
			idSet[id.String()] = true
		}
	}
	if len(idSet) == 0 {
		return nil
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return []Rule{{
		Action:     ActionRead,
		Subject:    SubjectContent,
		Conditions: &Conditions{IDs: ids},
	}}
}
