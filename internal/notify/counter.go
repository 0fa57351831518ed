package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/blanx-app/backend/internal/logger"
	"github.com/blanx-app/backend/internal/repository"
	"go.uber.org/zap"
)

const counterCacheTTL = 5 * time.Minute

// CountCache is the slice of the Redis client the counter uses.
// *cache.RedisClient satisfies it; tests substitute an in-memory fake.
type CountCache interface {
	GetInt(ctx context.Context, key string) (int64, error)
	SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Counter maintains the per-recipient unread notification count. The
// count is always derived from the store; the cache is a read-through
// layer invalidated on every write path, never an independent source of
// truth. With no cache configured every Count hits the store directly.
type Counter struct {
	repo  repository.NotificationRepository
	redis CountCache // may be nil
}

// NewCounter creates a counter over the notification store. redis may
// be nil to disable caching.
func NewCounter(repo repository.NotificationRepository, redis CountCache) *Counter {
	return &Counter{repo: repo, redis: redis}
}

func counterKey(recipientID string) string {
	return "notif:unread:" + recipientID
}

// Count returns the number of unread notifications for the recipient.
// A cache read error falls through to the store; the store error is the
// only one surfaced.
func (c *Counter) Count(ctx context.Context, recipientID string) (int64, error) {
	if c.redis != nil {
		if cached, err := c.redis.GetInt(ctx, counterKey(recipientID)); err == nil {
			return cached, nil
		}
	}

	count, err := c.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}

	if c.redis != nil {
		if err := c.redis.SetEx(ctx, counterKey(recipientID), count, counterCacheTTL); err != nil {
			logger.Log.Debug("Unread count cache write failed",
				logger.WithUserID(recipientID), zap.Error(err))
		}
	}

	return count, nil
}

// Invalidate drops the cached count for a recipient. Called on every
// store write so cache and store stay consistent by construction.
func (c *Counter) Invalidate(ctx context.Context, recipientID string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, counterKey(recipientID)); err != nil {
		logger.Log.Warn("Unread count cache invalidation failed",
			logger.WithUserID(recipientID), zap.Error(err))
	}
}

// MarkRead marks notifications read for the recipient. With ids, only
// those rows (rows owned by other recipients are silently ignored);
// with no ids, all unread rows. Marking an already-read row again is a
// no-op. Returns the number of rows updated.
func (c *Counter) MarkRead(ctx context.Context, recipientID string, ids []string) (int64, error) {
	updated, err := c.repo.MarkRead(ctx, recipientID, ids)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}

	if updated > 0 {
		c.Invalidate(ctx, recipientID)
	}

	return updated, nil
}
