// Package cache 将最新快照镜像到 Redis，供旁路服务和看板读取。
// 镜像是尽力而为的：写失败只记录，不影响摄入和广播。
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// SnapshotCache Redis 快照镜像
type SnapshotCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewSnapshotCache 创建快照镜像。
// TTL 让消费方能区分"陈旧镜像"和"服务还活着"。
func NewSnapshotCache(client *redis.Client, key string, ttl time.Duration, logger *zap.Logger) *SnapshotCache {
	return &SnapshotCache{
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logger,
	}
}

// Store 写入最新快照
func (c *SnapshotCache) Store(ctx context.Context, snapshot []byte) error {
	if err := c.client.Set(ctx, c.key, snapshot, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}

// Load 读取镜像快照。键不存在返回 nil（镜像过期或服务刚启动）。
func (c *SnapshotCache) Load(ctx context.Context) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load cached snapshot: %w", err)
	}
	return val, nil
}
