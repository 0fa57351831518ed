package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/blanx-app/backend/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CooldownStore is the slice of the Redis client the cooldown uses.
// *cache.RedisClient satisfies it; tests substitute an in-memory fake.
type CooldownStore interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

// Cooldown throttles an action to once per TTL window per user, as an
// expiring marker rather than a timer. With Redis the marker is a
// SET NX EX key so the window survives restarts; without it a local
// map with lazy expiry gives the same behavior in one process.
type Cooldown struct {
	redis  CooldownStore // may be nil
	prefix string
	ttl    time.Duration

	mu    sync.Mutex
	local map[string]time.Time // fallback: user id -> expiry
}

// NewCooldown creates a cooldown marker set. redis may be nil.
func NewCooldown(redis CooldownStore, prefix string, ttl time.Duration) *Cooldown {
	return &Cooldown{
		redis:  redis,
		prefix: prefix,
		ttl:    ttl,
		local:  make(map[string]time.Time),
	}
}

// Acquire marks the key if no live marker exists. Returns false while
// a previous marker is still live.
func (cd *Cooldown) Acquire(c *gin.Context, key string) bool {
	if cd.redis != nil {
		ok, err := cd.redis.SetNX(c.Request.Context(), cd.prefix+key, 1, cd.ttl)
		if err == nil {
			return ok
		}
		// Redis down: fall through to the local map rather than
		// letting the throttle disappear entirely.
		logger.Log.Warn("Cooldown marker write failed, using local fallback", zap.Error(err))
	}

	cd.mu.Lock()
	defer cd.mu.Unlock()

	now := time.Now()
	if expiry, ok := cd.local[key]; ok && now.Before(expiry) {
		return false
	}

	// Lazy expiry sweep keeps the map from growing unbounded.
	for k, expiry := range cd.local {
		if now.After(expiry) {
			delete(cd.local, k)
		}
	}

	cd.local[key] = now.Add(cd.ttl)
	return true
}

// Middleware rejects requests from users with a live marker with 429.
// Must run after AuthRequired.
func (cd *Cooldown) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
			c.Abort()
			return
		}

		if !cd.Acquire(c, userID) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "cooldown",
				"message": "Please wait before doing that again",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
