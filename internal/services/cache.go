package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/types"
)

const treeCacheTTL = 5 * time.Minute

// maxTreeCacheDepth bounds which depths are cached at all, so
// InvalidateTree can enumerate every key a root may have. Deeper reads
// go straight to the database.
const maxTreeCacheDepth = 8

// CacheService keeps rendered resource trees in Redis so course pages
// do not re-walk the edge table on every read. Misses and Redis errors
// both fall through to the database.
type CacheService interface {
	GetTree(ctx context.Context, rootID uuid.UUID, depth int) (*types.ContentResource, error)
	SetTree(ctx context.Context, rootID uuid.UUID, depth int, tree *types.ContentResource) error
	InvalidateTree(ctx context.Context, rootID uuid.UUID) error
}

type cacheService struct {
	rdb *redis.Client
	log *logger.Logger
}

func NewCacheService(rdb *redis.Client, baseLog *logger.Logger) CacheService {
	return &cacheService{
		rdb: rdb,
		log: baseLog.With("service", "CacheService"),
	}
}

func treeKey(rootID uuid.UUID, depth int) string {
	return fmt.Sprintf("tree:%s:%d", rootID, depth)
}

func (s *cacheService) GetTree(ctx context.Context, rootID uuid.UUID, depth int) (*types.ContentResource, error) {
	if s.rdb == nil || depth > maxTreeCacheDepth {
		return nil, nil
	}
	raw, err := s.rdb.Get(ctx, treeKey(rootID, depth)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tree types.ContentResource
	if err := json.Unmarshal(raw, &tree); err != nil {
		// A stale or truncated entry is treated as a miss.
		_ = s.rdb.Del(ctx, treeKey(rootID, depth)).Err()
		return nil, nil
	}
	return &tree, nil
}

func (s *cacheService) SetTree(ctx context.Context, rootID uuid.UUID, depth int, tree *types.ContentResource) error {
	if s.rdb == nil || depth > maxTreeCacheDepth {
		return nil
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, treeKey(rootID, depth), raw, treeCacheTTL).Err()
}

// InvalidateTree drops every cached depth for the root. Depths are tiny
// integers so a bounded scan beats a SCAN round trip.
func (s *cacheService) InvalidateTree(ctx context.Context, rootID uuid.UUID) error {
	if s.rdb == nil {
		return nil
	}
	keys := make([]string, 0, maxTreeCacheDepth)
	for depth := 1; depth <= maxTreeCacheDepth; depth++ {
		keys = append(keys, treeKey(rootID, depth))
	}
	return s.rdb.Del(ctx, keys...).Err()
}
