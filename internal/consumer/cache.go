package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"yourmove/internal/config"
	"yourmove/internal/models"

	"go.uber.org/zap"
)

// CacheManager 会话分析结果缓存
//
// 键格式：
//   - {prefix}{session_id}:status     最近一帧快照（身体状态 + 指令）
//   - {prefix}{session_id}:analytics  最近一次完整分析载荷
type CacheManager struct {
	config *config.Config
	kv     KVStore
	logger *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(cfg *config.Config, kv KVStore, logger *zap.Logger) *CacheManager {
	return &CacheManager{
		config: cfg,
		kv:     kv,
		logger: logger,
	}
}

func (c *CacheManager) statusKey(sessionID string) string {
	return fmt.Sprintf("%s%s:status", c.config.Cache.SessionKeyPrefix, sessionID)
}

func (c *CacheManager) analyticsKey(sessionID string) string {
	return fmt.Sprintf("%s%s:analytics", c.config.Cache.SessionKeyPrefix, sessionID)
}

// UpdateStatus 更新会话快照缓存
func (c *CacheManager) UpdateStatus(ctx context.Context, snapshot *models.SessionSnapshot) error {
	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	if err := c.kv.Set(ctx, c.statusKey(snapshot.SessionID), string(jsonData), c.config.Cache.StatusTTL); err != nil {
		return fmt.Errorf("failed to set status cache: %w", err)
	}
	return nil
}

// UpdateAnalytics 更新分析载荷缓存
func (c *CacheManager) UpdateAnalytics(ctx context.Context, sessionID string, analytics *models.AdvancedAnalytics) error {
	jsonData, err := json.Marshal(analytics)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics: %w", err)
	}
	key := c.analyticsKey(sessionID)
	if err := c.kv.Set(ctx, key, string(jsonData), c.config.Cache.AnalyticsTTL); err != nil {
		return fmt.Errorf("failed to set analytics cache: %w", err)
	}

	c.logger.Debug("Updated analytics cache",
		zap.String("session_id", sessionID),
		zap.String("key", key),
	)
	return nil
}

// GetStatus 读取会话快照（原始 JSON）。不存在时返回 ErrCacheMiss。
func (c *CacheManager) GetStatus(ctx context.Context, sessionID string) (json.RawMessage, error) {
	val, err := c.kv.Get(ctx, c.statusKey(sessionID))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(val), nil
}

// GetAnalytics 读取分析载荷（原始 JSON）。不存在时返回 ErrCacheMiss。
func (c *CacheManager) GetAnalytics(ctx context.Context, sessionID string) (json.RawMessage, error) {
	val, err := c.kv.Get(ctx, c.analyticsKey(sessionID))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(val), nil
}

// Evict 删除会话的全部缓存
func (c *CacheManager) Evict(ctx context.Context, sessionID string) error {
	return c.kv.Del(ctx, c.statusKey(sessionID), c.analyticsKey(sessionID))
}
