package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/ability"
	"github.com/coursebuilder/backend/internal/services"
	"github.com/coursebuilder/backend/internal/types"
)

// stubContent serves a single fixed resource for any lookup.
type stubContent struct {
	res *types.ContentResource
}

func (s *stubContent) Create(ctx context.Context, tx *gorm.DB, createdBy uuid.UUID, in services.CreateResourceInput) (*types.ContentResource, error) {
	return s.res, nil
}

func (s *stubContent) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ContentResource, error) {
	return s.res, nil
}

func (s *stubContent) GetByIDOrSlug(ctx context.Context, tx *gorm.DB, ref string) (*types.ContentResource, error) {
	return s.res, nil
}

func (s *stubContent) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, in services.UpdateResourceInput) (*types.ContentResource, error) {
	return s.res, nil
}

func (s *stubContent) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error { return nil }

func (s *stubContent) SetState(ctx context.Context, tx *gorm.DB, id uuid.UUID, state string) (*types.ContentResource, error) {
	return s.res, nil
}

// stubTree fails Attach with a fixed error and rejects everything else.
type stubTree struct {
	attachErr error
}

func (s *stubTree) LoadTree(ctx context.Context, tx *gorm.DB, rootID uuid.UUID, depth int) (*types.ContentResource, error) {
	return nil, nil
}

func (s *stubTree) Attach(ctx context.Context, tx *gorm.DB, parentID, childID uuid.UUID, afterChildID *uuid.UUID) (*types.ContentResourceResource, error) {
	return nil, s.attachErr
}

func (s *stubTree) Detach(ctx context.Context, tx *gorm.DB, parentID, childID uuid.UUID) error {
	return nil
}

func (s *stubTree) Reorder(ctx context.Context, tx *gorm.DB, parentID uuid.UUID, orderedChildIDs []uuid.UUID) error {
	return nil
}

// adminAbilities gives every caller the admin rule set.
type adminAbilities struct{}

func (adminAbilities) ForUser(ctx context.Context, userID uuid.UUID) (*ability.Ability, error) {
	return ability.Build(ability.Input{User: &types.User{ID: uuid.New(), Role: "admin"}}), nil
}

func (adminAbilities) ForAnonymous() *ability.Ability {
	return ability.Build(ability.Input{})
}

var (
	_ services.ContentService = (*stubContent)(nil)
	_ services.TreeService    = (*stubTree)(nil)
	_ services.AbilityService = adminAbilities{}
)

// A cycle surfacing through wrapped errors still maps to the 409
// edge_cycle response.
func TestAttachReportsWrappedCycleAsConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	parent := &types.ContentResource{
		ID:     uuid.New(),
		Type:   types.TypeWorkshop,
		Fields: types.MustJSON(map[string]any{"title": "Parent"}),
	}
	h := NewContentHandler(
		&stubContent{res: parent},
		&stubTree{attachErr: fmt.Errorf("attach edge: %w", services.ErrEdgeCycle)},
		nil,
		adminAbilities{},
	)
	r := gin.New()
	r.POST("/api/resources/:id/children", h.Attach)

	body := fmt.Sprintf(`{"child_id":%q}`, uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/api/resources/"+parent.ID.String()+"/children", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if !strings.Contains(w.Body.String(), "edge_cycle") {
		t.Fatalf("body %q missing edge_cycle code", w.Body.String())
	}
}
