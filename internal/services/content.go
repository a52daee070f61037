package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/apierr"
	"github.com/coursebuilder/backend/internal/events"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/types"
	"github.com/coursebuilder/backend/internal/utils"
)

// slugAttempts bounds the collision-retry loop during create.
const slugAttempts = 5

type CreateResourceInput struct {
	Type   string          `json:"type"`
	Fields json.RawMessage `json:"fields"`
}

type UpdateResourceInput struct {
	Fields json.RawMessage `json:"fields"`
}

type ContentService interface {
	Create(ctx context.Context, tx *gorm.DB, createdBy uuid.UUID, in CreateResourceInput) (*types.ContentResource, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ContentResource, error)
	GetByIDOrSlug(ctx context.Context, tx *gorm.DB, ref string) (*types.ContentResource, error)
	Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, in UpdateResourceInput) (*types.ContentResource, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	SetState(ctx context.Context, tx *gorm.DB, id uuid.UUID, state string) (*types.ContentResource, error)
}

type contentService struct {
	db        *gorm.DB
	log       *logger.Logger
	repo      repos.ContentResourceRepo
	edgeRepo  repos.ResourceEdgeRepo
	sanitizer *bluemonday.Policy
	jobs      JobService
	cache     CacheService
}

func NewContentService(db *gorm.DB, baseLog *logger.Logger, repo repos.ContentResourceRepo, edgeRepo repos.ResourceEdgeRepo, jobs JobService, cache CacheService) ContentService {
	return &contentService{
		db:        db,
		log:       baseLog.With("service", "ContentService"),
		repo:      repo,
		edgeRepo:  edgeRepo,
		sanitizer: bluemonday.UGCPolicy(),
		jobs:      jobs,
		cache:     cache,
	}
}

// Create validates the typed fields for the resource type, derives a slug
// from the title, and writes the row. Slug assignment happens inside the
// same transaction as the insert so a crash cannot leave a slugless row.
func (s *contentService) Create(ctx context.Context, tx *gorm.DB, createdBy uuid.UUID, in CreateResourceInput) (*types.ContentResource, error) {
	if !types.ValidResourceType(in.Type) {
		return nil, apierr.New(http.StatusBadRequest, "invalid_resource_type", &types.InvalidResourceTypeError{Type: in.Type})
	}
	typed, err := types.DecodeFields(in.Type, in.Fields)
	if err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_fields", err)
	}
	if err := typed.Validate(); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_fields", err)
	}

	fields := map[string]any{}
	if len(in.Fields) > 0 {
		if err := json.Unmarshal(in.Fields, &fields); err != nil {
			return nil, apierr.New(http.StatusBadRequest, "invalid_fields", err)
		}
	}
	if body, ok := fields["body"].(string); ok {
		fields["body"] = s.sanitizer.Sanitize(body)
	}
	if _, ok := fields["state"]; !ok {
		fields["state"] = types.StateDraft
	}
	if _, ok := fields["visibility"]; !ok {
		fields["visibility"] = types.VisibilityUnlisted
	}

	title, _ := fields["title"].(string)

	resource := &types.ContentResource{
		ID:          uuid.New(),
		Type:        in.Type,
		CreatedByID: createdBy,
	}

	run := func(transaction *gorm.DB) error {
		slug, sErr := s.availableSlug(ctx, transaction, in.Type, title)
		if sErr != nil {
			return sErr
		}
		fields["slug"] = slug
		resource.Fields = types.MustJSON(fields)
		_, cErr := s.repo.Create(ctx, transaction, []*types.ContentResource{resource})
		return cErr
	}

	if tx != nil {
		err = run(tx)
	} else {
		err = s.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		s.log.Error("Create resource failed", "error", err, "type", in.Type)
		return nil, fmt.Errorf("create resource: %w", err)
	}
	s.afterWrite(ctx, resource)
	return resource, nil
}

// availableSlug derives a slug from the title and retries with fresh
// suffixes until it does not collide within the type.
func (s *contentService) availableSlug(ctx context.Context, tx *gorm.DB, resourceType, title string) (string, error) {
	base := utils.Slugify(title)
	for i := 0; i < slugAttempts; i++ {
		candidate := fmt.Sprintf("%s-%s", base, utils.SlugSuffix())
		exists, err := s.repo.SlugExists(ctx, tx, resourceType, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not find available slug for %q", base)
}

func (s *contentService) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ContentResource, error) {
	res, err := s.repo.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, apierr.New(http.StatusNotFound, "resource_not_found", fmt.Errorf("resource %s not found", id))
	}
	return res, nil
}

// GetByIDOrSlug resolves a route ref that may be either a uuid or a slug.
func (s *contentService) GetByIDOrSlug(ctx context.Context, tx *gorm.DB, ref string) (*types.ContentResource, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return s.GetByID(ctx, tx, id)
	}
	res, err := s.repo.GetBySlug(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, apierr.New(http.StatusNotFound, "resource_not_found", fmt.Errorf("resource %q not found", ref))
	}
	return res, nil
}

// Update merges the submitted fields over the stored ones. The slug is
// immutable here; type-specific validation runs on the merged result.
func (s *contentService) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, in UpdateResourceInput) (*types.ContentResource, error) {
	res, err := s.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	merged := res.FieldsMap()
	var patch map[string]any
	if len(in.Fields) > 0 {
		if err := json.Unmarshal(in.Fields, &patch); err != nil {
			return nil, apierr.New(http.StatusBadRequest, "invalid_fields", err)
		}
	}
	for k, v := range patch {
		if k == "slug" {
			continue
		}
		merged[k] = v
	}
	if body, ok := merged["body"].(string); ok {
		merged["body"] = s.sanitizer.Sanitize(body)
	}

	raw := types.MustJSON(merged)
	typed, err := types.DecodeFields(res.Type, raw)
	if err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_fields", err)
	}
	if err := typed.Validate(); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_fields", err)
	}

	if err := s.repo.UpdateFields(ctx, tx, id, raw); err != nil {
		return nil, fmt.Errorf("update resource: %w", err)
	}
	res.Fields = raw
	res.UpdatedAt = time.Now().UTC()
	s.afterWrite(ctx, res)
	return res, nil
}

func (s *contentService) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	res, err := s.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, tx, id); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	s.afterWrite(ctx, res)
	return nil
}

// SetState moves the resource between draft/published/archived and
// requests a search reindex.
func (s *contentService) SetState(ctx context.Context, tx *gorm.DB, id uuid.UUID, state string) (*types.ContentResource, error) {
	if !types.ValidState(state) {
		return nil, apierr.New(http.StatusBadRequest, "invalid_state", fmt.Errorf("unknown state %q", state))
	}
	patch := types.MustJSON(map[string]any{"state": state})
	return s.Update(ctx, tx, id, UpdateResourceInput{Fields: json.RawMessage(patch)})
}

// afterWrite requests the read-side refreshes a mutation invalidates:
// cached trees under every affected root, plus the search index.
func (s *contentService) afterWrite(ctx context.Context, res *types.ContentResource) {
	// Ancestor trees embed this node, so their caches go stale too.
	invalidateTreeUp(ctx, s.cache, s.edgeRepo, s.log, res.ID)
	if s.jobs != nil {
		if _, err := s.jobs.Dispatch(ctx, uuid.Nil, events.ResourceIndexRequestedPayload{ResourceID: res.ID}); err != nil {
			s.log.Warn("Search index dispatch failed", "error", err, "resource_id", res.ID)
		}
	}
}
