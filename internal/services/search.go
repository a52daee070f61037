package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	meili "github.com/meilisearch/meilisearch-go"

	"github.com/coursebuilder/backend/internal/apierr"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/types"
)

const resourceIndexUID = "content_resources"

// ResourceDocument is the shape indexed per content resource. Only
// fields the search page renders are carried.
type ResourceDocument struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Slug       string `json:"slug"`
	Title      string `json:"title"`
	Summary    string `json:"summary,omitempty"`
	State      string `json:"state"`
	Visibility string `json:"visibility"`
}

// SearchHit is one result row returned to callers.
type SearchHit struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// SearchService maintains the Meilisearch index over content resources.
// Only published, public resources are searchable; everything else is
// removed from the index on write.
type SearchService interface {
	EnsureIndexes() error
	IndexResource(ctx context.Context, res *types.ContentResource) error
	DeleteResource(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string, resourceType string, limit int) ([]SearchHit, error)
}

type searchService struct {
	client meili.ServiceManager
	log    *logger.Logger
}

func NewSearchService(client meili.ServiceManager, baseLog *logger.Logger) SearchService {
	return &searchService{
		client: client,
		log:    baseLog.With("service", "SearchService"),
	}
}

func (s *searchService) EnsureIndexes() error {
	if s.client == nil {
		return nil
	}
	if _, err := s.client.CreateIndex(&meili.IndexConfig{
		Uid:        resourceIndexUID,
		PrimaryKey: "id",
	}); err != nil {
		// Create is racy across replicas; an existing index is fine.
		s.log.Debug("Create index failed", "error", err, "index", resourceIndexUID)
	}
	index := s.client.Index(resourceIndexUID)
	filterable := []interface{}{"type", "state", "visibility"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		return fmt.Errorf("configure index %s: %w", resourceIndexUID, err)
	}
	searchable := []string{"title", "summary", "slug"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		return fmt.Errorf("configure index %s: %w", resourceIndexUID, err)
	}
	return nil
}

func (s *searchService) IndexResource(ctx context.Context, res *types.ContentResource) error {
	if s.client == nil || res == nil {
		return nil
	}
	if res.State() != types.StatePublished || !res.IsPublic() {
		return s.DeleteResource(ctx, res.ID)
	}
	doc := ResourceDocument{
		ID:         res.ID.String(),
		Type:       res.Type,
		Slug:       res.Slug(),
		Title:      res.Title(),
		Summary:    res.FieldString("summary"),
		State:      res.State(),
		Visibility: res.Visibility(),
	}
	if _, err := s.client.Index(resourceIndexUID).AddDocuments([]ResourceDocument{doc}, nil); err != nil {
		return fmt.Errorf("index resource %s: %w", res.ID, err)
	}
	return nil
}

func (s *searchService) DeleteResource(ctx context.Context, id uuid.UUID) error {
	if s.client == nil {
		return nil
	}
	if _, err := s.client.Index(resourceIndexUID).DeleteDocument(id.String(), nil); err != nil {
		return fmt.Errorf("deindex resource %s: %w", id, err)
	}
	return nil
}

func (s *searchService) Search(ctx context.Context, query string, resourceType string, limit int) ([]SearchHit, error) {
	if s.client == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, "search_unavailable", fmt.Errorf("search backend not configured"))
	}
	if limit <= 0 {
		limit = 20
	}
	req := &meili.SearchRequest{Limit: int64(limit)}
	if resourceType != "" {
		req.Filter = fmt.Sprintf("type = %q", resourceType)
	}
	resp, err := s.client.Index(resourceIndexUID).Search(query, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	hits := make([]SearchHit, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		hits = append(hits, SearchHit{
			ID:    hitString(hit, "id"),
			Type:  hitString(hit, "type"),
			Slug:  hitString(hit, "slug"),
			Title: hitString(hit, "title"),
		})
	}
	return hits, nil
}

func hitString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v
}
