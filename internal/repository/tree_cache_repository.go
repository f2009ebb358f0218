// Package repository 包含了所有与数据库交互的逻辑。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kb-space-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// TreeCacheRepository 接口定义了全树快照在 Redis 中的缓存操作。
// 缓存允许短暂落后于数据库（最终可见即可），任何结构性变更都会使其失效。
type TreeCacheRepository interface {
	Get(ctx context.Context, scope model.Scope, baseID uint) (*model.WorkSpaceTree, error)
	Set(ctx context.Context, scope model.Scope, baseID uint, tree *model.WorkSpaceTree, ttl time.Duration) error
	Invalidate(ctx context.Context, scope model.Scope, baseID uint) error
}

// treeCacheRepository 是 TreeCacheRepository 接口的 Redis 实现。
type treeCacheRepository struct {
	redisClient *redis.Client
}

// NewTreeCacheRepository 创建一个新的 TreeCacheRepository 实例。
func NewTreeCacheRepository(redisClient *redis.Client) TreeCacheRepository {
	return &treeCacheRepository{redisClient: redisClient}
}

// cacheKey generates the redis key for a scope's tree snapshot.
func (r *treeCacheRepository) cacheKey(scope model.Scope, baseID uint) string {
	return fmt.Sprintf("kb:tree:%d:%d:%d", scope.OrganizationID, scope.ProjectID, baseID)
}

// Get 读取缓存的全树快照，缓存未命中时返回 (nil, nil)。
func (r *treeCacheRepository) Get(ctx context.Context, scope model.Scope, baseID uint) (*model.WorkSpaceTree, error) {
	raw, err := r.redisClient.Get(ctx, r.cacheKey(scope, baseID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var tree model.WorkSpaceTree
	if err := json.Unmarshal(raw, &tree); err != nil {
		// 缓存内容损坏时当作未命中，由调用方重建
		_ = r.redisClient.Del(ctx, r.cacheKey(scope, baseID)).Err()
		return nil, nil
	}
	return &tree, nil
}

// Set 写入全树快照，ttl 到期后自动失效。
func (r *treeCacheRepository) Set(ctx context.Context, scope model.Scope, baseID uint, tree *model.WorkSpaceTree, ttl time.Duration) error {
	raw, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	return r.redisClient.Set(ctx, r.cacheKey(scope, baseID), raw, ttl).Err()
}

// Invalidate 删除租户下的树快照。结构性变更后调用，
// 同时清掉按知识库划分的快照与不区分知识库的全量快照。
func (r *treeCacheRepository) Invalidate(ctx context.Context, scope model.Scope, baseID uint) error {
	keys := []string{r.cacheKey(scope, 0)}
	if baseID != 0 {
		keys = append(keys, r.cacheKey(scope, baseID))
	}
	return r.redisClient.Del(ctx, keys...).Err()
}
