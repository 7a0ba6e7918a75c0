package rewriter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/chatrag/backend-go/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache 改写结果的Redis缓存
// 键按租户隔离；缓存失败只记录日志，不影响改写流程
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache 创建改写结果缓存，ttl<=0时返回nil（禁用缓存）
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("rewrite_cache"),
	}
}

// Get 查询缓存，miss返回("", false)
func (c *RedisCache) Get(ctx context.Context, tenantID, query string) (string, bool) {
	val, err := c.client.Get(ctx, c.key(tenantID, query)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.Debug("rewrite cache get failed", zap.Error(err))
		return "", false
	}
	return val, true
}

// Set 写入缓存
func (c *RedisCache) Set(ctx context.Context, tenantID, query, rewritten string) {
	if err := c.client.Set(ctx, c.key(tenantID, query), rewritten, c.ttl).Err(); err != nil {
		c.logger.Debug("rewrite cache set failed", zap.Error(err))
	}
}

// key 按(租户, 查询哈希)构造缓存键
func (c *RedisCache) key(tenantID, query string) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("rewrite:%s:%s", tenantID, hex.EncodeToString(sum[:8]))
}
