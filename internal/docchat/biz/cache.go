package biz

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/internal/pkg/textutil"
)

// AnswerCacheConfig 回答缓存配置。
type AnswerCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// AnswerCache 基于 Redis 的查询回答缓存。
// 键按会话隔离，上传新文档或重置会话时整体失效。
type AnswerCache struct {
	redis  *goredis.Client
	config *AnswerCacheConfig
}

// NewAnswerCache 创建回答缓存实例。
func NewAnswerCache(redis *goredis.Client, config *AnswerCacheConfig) *AnswerCache {
	if config == nil {
		config = &AnswerCacheConfig{
			Enabled:   false,
			TTL:       1 * time.Hour,
			KeyPrefix: "docchat:answer:",
		}
	}
	return &AnswerCache{
		redis:  redis,
		config: config,
	}
}

// Active 返回缓存是否可用。
func (c *AnswerCache) Active() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

// cacheKey 由会话 ID 和问题哈希构成，保证跨会话不串缓存。
func (c *AnswerCache) cacheKey(sessionID, question string) string {
	return c.config.KeyPrefix + sessionID + ":" + textutil.HashString(question)
}

// Get 从缓存获取回答，未命中返回 nil。
func (c *AnswerCache) Get(ctx context.Context, sessionID, question string) *model.QueryResponse {
	if !c.Active() {
		return nil
	}

	key := c.cacheKey(sessionID, question)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("failed to get from answer cache", "error", err.Error(), "key", key)
		}
		return nil
	}

	var resp model.QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Warnw("failed to unmarshal cached answer", "error", err.Error(), "key", key)
		// 删除损坏的缓存
		_ = c.redis.Del(ctx, key).Err()
		return nil
	}

	logger.Infow("answer cache hit", "session_id", sessionID, "key", key)
	return &resp
}

// Set 将回答写入缓存。缓存故障只记日志，不影响请求。
func (c *AnswerCache) Set(ctx context.Context, sessionID, question string, resp *model.QueryResponse) {
	if !c.Active() {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		logger.Warnw("failed to marshal answer for caching", "error", err.Error())
		return
	}

	key := c.cacheKey(sessionID, question)
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set answer cache", "error", err.Error(), "key", key)
	}
}

// ClearSession 清除单个会话的全部缓存回答。
func (c *AnswerCache) ClearSession(ctx context.Context, sessionID string) {
	if !c.Active() {
		return
	}

	pattern := c.config.KeyPrefix + sessionID + ":*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cached answer", "error", err.Error(), "key", iter.Val())
		} else {
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		logger.Warnw("error during answer cache scan", "error", err.Error(), "session_id", sessionID)
		return
	}

	if deleted > 0 {
		logger.Infow("cleared session answer cache", "session_id", sessionID, "deleted_count", deleted)
	}
}
