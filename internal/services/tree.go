package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/apierr"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/types"
)

// DefaultTreeDepth matches what course pages need: module -> section ->
// lesson below a workshop root.
const DefaultTreeDepth = 3

// ErrEdgeCycle rejects an attach that would make a resource its own
// ancestor.
var ErrEdgeCycle = errors.New("attach would create a cycle")

type TreeService interface {
	LoadTree(ctx context.Context, tx *gorm.DB, rootID uuid.UUID, depth int) (*types.ContentResource, error)
	Attach(ctx context.Context, tx *gorm.DB, parentID, childID uuid.UUID, afterChildID *uuid.UUID) (*types.ContentResourceResource, error)
	Detach(ctx context.Context, tx *gorm.DB, parentID, childID uuid.UUID) error
	Reorder(ctx context.Context, tx *gorm.DB, parentID uuid.UUID, orderedChildIDs []uuid.UUID) error
}

type treeService struct {
	db       *gorm.DB
	log      *logger.Logger
	resRepo  repos.ContentResourceRepo
	edgeRepo repos.ResourceEdgeRepo
	cache    CacheService
}

func NewTreeService(db *gorm.DB, baseLog *logger.Logger, resRepo repos.ContentResourceRepo, edgeRepo repos.ResourceEdgeRepo, cache CacheService) TreeService {
	return &treeService{
		db:       db,
		log:      baseLog.With("service", "TreeService"),
		resRepo:  resRepo,
		edgeRepo: edgeRepo,
		cache:    cache,
	}
}

// LoadTree loads the root and its nested children to the given depth,
// children ordered by position, soft-deleted rows excluded. Levels are
// fetched in batches so depth d costs d queries, not one per node. A
// visited set keeps a malformed graph (pre-cycle-check data) from
// looping the walk.
func (s *treeService) LoadTree(ctx context.Context, tx *gorm.DB, rootID uuid.UUID, depth int) (*types.ContentResource, error) {
	if depth <= 0 {
		depth = DefaultTreeDepth
	}
	if s.cache != nil && tx == nil {
		if cached, err := s.cache.GetTree(ctx, rootID, depth); err == nil && cached != nil {
			return cached, nil
		}
	}

	root, err := s.resRepo.GetByID(ctx, tx, rootID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, apierr.New(http.StatusNotFound, "resource_not_found", fmt.Errorf("resource %s not found", rootID))
	}

	visited := map[uuid.UUID]bool{root.ID: true}
	level := map[uuid.UUID]*types.ContentResource{root.ID: root}

	for d := 0; d < depth && len(level) > 0; d++ {
		parentIDs := make([]uuid.UUID, 0, len(level))
		for id := range level {
			parentIDs = append(parentIDs, id)
		}
		edges, err := s.edgeRepo.GetChildrenByParentIDs(ctx, tx, parentIDs)
		if err != nil {
			return nil, err
		}
		next := map[uuid.UUID]*types.ContentResource{}
		for _, edge := range edges {
			parent, ok := level[edge.ResourceOfID]
			if !ok || edge.Resource == nil {
				continue
			}
			parent.Resources = append(parent.Resources, edge)
			if !visited[edge.ResourceID] {
				visited[edge.ResourceID] = true
				next[edge.ResourceID] = edge.Resource
			}
		}
		level = next
	}

	if s.cache != nil && tx == nil {
		if err := s.cache.SetTree(ctx, rootID, depth, root); err != nil {
			s.log.Debug("Tree cache write failed", "error", err, "root_id", rootID)
		}
	}
	return root, nil
}

// Attach links child under parent. With afterChildID set, the new edge
// takes a midpoint position between that sibling and its successor so no
// other sibling is rewritten; otherwise it lands at the end.
func (s *treeService) Attach(ctx context.Context, tx *gorm.DB, parentID, childID uuid.UUID, afterChildID *uuid.UUID) (*types.ContentResourceResource, error) {
	if parentID == childID {
		return nil, ErrEdgeCycle
	}
	parent, err := s.resRepo.GetByID(ctx, tx, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, apierr.New(http.StatusNotFound, "resource_not_found", fmt.Errorf("parent %s not found", parentID))
	}
	child, err := s.resRepo.GetByID(ctx, tx, childID)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, apierr.New(http.StatusNotFound, "resource_not_found", fmt.Errorf("child %s not found", childID))
	}

	// Walk up from the parent; finding the child among its ancestors
	// means the edge would close a loop.
	cyclic, err := s.isAncestor(ctx, tx, childID, parentID)
	if err != nil {
		return nil, err
	}
	if cyclic {
		return nil, ErrEdgeCycle
	}

	siblings, err := s.edgeRepo.GetChildren(ctx, tx, parentID)
	if err != nil {
		return nil, err
	}
	position := insertPosition(siblings, afterChildID)

	edge := &types.ContentResourceResource{
		ResourceOfID: parentID,
		ResourceID:   childID,
		Position:     position,
	}
	if _, err := s.edgeRepo.Create(ctx, tx, []*types.ContentResourceResource{edge}); err != nil {
		return nil, fmt.Errorf("attach resource: %w", err)
	}
	s.invalidateUp(ctx, parentID)
	return edge, nil
}

// insertPosition picks a position for a new edge: past the last sibling
// by default, or the midpoint after the named sibling.
func insertPosition(siblings []*types.ContentResourceResource, afterChildID *uuid.UUID) float64 {
	if len(siblings) == 0 {
		return 1
	}
	if afterChildID == nil {
		return siblings[len(siblings)-1].Position + 1
	}
	for i, sib := range siblings {
		if sib.ResourceID != *afterChildID {
			continue
		}
		if i == len(siblings)-1 {
			return sib.Position + 1
		}
		return (sib.Position + siblings[i+1].Position) / 2
	}
	return siblings[len(siblings)-1].Position + 1
}

// isAncestor reports whether candidate appears anywhere above nodeID.
// Multiple parents per node means this is a graph walk, not a chain.
func (s *treeService) isAncestor(ctx context.Context, tx *gorm.DB, candidate, nodeID uuid.UUID) (bool, error) {
	visited := map[uuid.UUID]bool{}
	frontier := []uuid.UUID{nodeID}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		if current == candidate {
			return true, nil
		}
		parents, err := s.edgeRepo.GetParentIDs(ctx, tx, current)
		if err != nil {
			return false, err
		}
		frontier = append(frontier, parents...)
	}
	return false, nil
}

func (s *treeService) Detach(ctx context.Context, tx *gorm.DB, parentID, childID uuid.UUID) error {
	if err := s.edgeRepo.SoftDelete(ctx, tx, parentID, childID); err != nil {
		return fmt.Errorf("detach resource: %w", err)
	}
	s.invalidateUp(ctx, parentID)
	return nil
}

// Reorder rewrites sibling positions as 1..n to match the requested
// order, inside a single transaction so a partial failure rolls back
// rather than leaving a half-reordered list. Every current sibling must
// appear in the request exactly once.
func (s *treeService) Reorder(ctx context.Context, tx *gorm.DB, parentID uuid.UUID, orderedChildIDs []uuid.UUID) error {
	run := func(transaction *gorm.DB) error {
		siblings, err := s.edgeRepo.GetChildren(ctx, transaction, parentID)
		if err != nil {
			return err
		}
		current := map[uuid.UUID]bool{}
		for _, sib := range siblings {
			current[sib.ResourceID] = true
		}
		if len(orderedChildIDs) != len(siblings) {
			return apierr.New(http.StatusBadRequest, "reorder_mismatch",
				fmt.Errorf("reorder lists %d ids, parent has %d children", len(orderedChildIDs), len(siblings)))
		}
		seen := map[uuid.UUID]bool{}
		for _, id := range orderedChildIDs {
			if !current[id] {
				return apierr.New(http.StatusBadRequest, "reorder_mismatch",
					fmt.Errorf("%s is not a child of %s", id, parentID))
			}
			if seen[id] {
				return apierr.New(http.StatusBadRequest, "reorder_mismatch",
					fmt.Errorf("%s listed twice", id))
			}
			seen[id] = true
		}
		for i, id := range orderedChildIDs {
			if err := s.edgeRepo.UpdatePosition(ctx, transaction, parentID, id, float64(i+1)); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	if tx != nil {
		err = run(tx)
	} else {
		err = s.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		return err
	}
	s.invalidateUp(ctx, parentID)
	return nil
}

// invalidateUp drops cached trees for the node and every ancestor whose
// rendered tree contains it.
func (s *treeService) invalidateUp(ctx context.Context, nodeID uuid.UUID) {
	invalidateTreeUp(ctx, s.cache, s.edgeRepo, s.log, nodeID)
}

// invalidateTreeUp walks the ancestor graph from nodeID and drops the
// cached tree of every node whose render embeds it. Shared by the tree
// and content services so any mutation reaches the caches above it.
func invalidateTreeUp(ctx context.Context, cache CacheService, edges repos.ResourceEdgeRepo, log *logger.Logger, nodeID uuid.UUID) {
	if cache == nil {
		return
	}
	visited := map[uuid.UUID]bool{}
	frontier := []uuid.UUID{nodeID}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		if err := cache.InvalidateTree(ctx, current); err != nil {
			log.Debug("Tree cache invalidation failed", "error", err, "resource_id", current)
		}
		parents, err := edges.GetParentIDs(ctx, nil, current)
		if err != nil {
			log.Debug("Ancestor walk failed during invalidation", "error", err, "resource_id", current)
			return
		}
		frontier = append(frontier, parents...)
	}
}
