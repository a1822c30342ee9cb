// Package cache keeps a read-through copy of the notification list in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"push-notification-service/internal/model"
	"push-notification-service/pkg/metrics"
)

// ListKey holds the JSON-encoded result of the last full list read.
const ListKey = "push_notifications:all"

const defaultTTL = 30 * time.Second

type NotificationCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewNotificationCache(rdb redis.Cmdable, ttl time.Duration) *NotificationCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &NotificationCache{rdb: rdb, ttl: ttl}
}

// GetList reports ok=false on a miss. A corrupt entry is dropped and
// treated as a miss.
func (c *NotificationCache) GetList(ctx context.Context) ([]model.Notification, bool, error) {
	raw, err := c.rdb.Get(ctx, ListKey).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.IncrementCacheRequest("miss")
		return nil, false, nil
	}
	if err != nil {
		metrics.IncrementCacheRequest("error")
		return nil, false, fmt.Errorf("get %s: %w", ListKey, err)
	}

	items := make([]model.Notification, 0)
	if err := json.Unmarshal(raw, &items); err != nil {
		metrics.IncrementCacheRequest("miss")
		_ = c.rdb.Del(ctx, ListKey).Err()
		return nil, false, nil
	}

	metrics.IncrementCacheRequest("hit")
	return items, true, nil
}

func (c *NotificationCache) SetList(ctx context.Context, items []model.Notification) error {
	if items == nil {
		items = []model.Notification{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode notification list: %w", err)
	}
	if err := c.rdb.Set(ctx, ListKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", ListKey, err)
	}
	return nil
}

func (c *NotificationCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Del(ctx, ListKey).Err(); err != nil {
		return fmt.Errorf("del %s: %w", ListKey, err)
	}
	return nil
}
