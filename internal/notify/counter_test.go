package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blanx-app/backend/internal/models"
	"github.com/blanx-app/backend/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCacheMiss = errors.New("cache miss")

// fakeCountCache implements CountCache with observable contents.
type fakeCountCache struct {
	mu     sync.Mutex
	values map[string]int64
	getErr error
	setErr error
}

func newFakeCountCache() *fakeCountCache {
	return &fakeCountCache{values: make(map[string]int64)}
}

func (f *fakeCountCache) GetInt(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return 0, f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return 0, errCacheMiss
	}
	return v, nil
}

func (f *fakeCountCache) SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value.(int64)
	return nil
}

func (f *fakeCountCache) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeCountCache) put(key string, v int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = v
}

func (f *fakeCountCache) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok
}

func TestCountReadThroughCache(t *testing.T) {
	cache := newFakeCountCache()
	f := newProducerFixtureWithCache(t, cache)
	ctx := context.Background()

	owner := f.createUser(t, "owner")
	sender := f.createUser(t, "sender")

	for i := 0; i < 2; i++ {
		_, err := f.producer.Record(ctx, owner.ID, sender.ID, models.NotificationFollow, nil, nil, "")
		require.NoError(t, err)
	}

	count, err := f.counter.Count(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.True(t, cache.has(counterKey(owner.ID)), "count read must populate the cache")

	// A store write that bypasses the counter is masked until the entry
	// expires or is invalidated.
	require.NoError(t, f.db.Model(&models.Notification{}).
		Where("recipient_id = ?", owner.ID).Update("read", true).Error)

	count, err = f.counter.Count(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "cached value is served until invalidated")

	f.counter.Invalidate(ctx, owner.ID)
	count, err = f.counter.Count(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRecordInvalidatesStaleCache(t *testing.T) {
	cache := newFakeCountCache()
	f := newProducerFixtureWithCache(t, cache)
	ctx := context.Background()

	owner := f.createUser(t, "owner")
	sender := f.createUser(t, "sender")

	ch := &fakeChannel{id: "tab-1"}
	f.registry.Bind(ch, owner.ID)

	// Poison the cache; a record must drop the entry before recounting.
	cache.put(counterKey(owner.ID), 99)

	_, err := f.producer.Record(ctx, owner.ID, sender.ID, models.NotificationFollow, nil, nil, "")
	require.NoError(t, err)

	counts := ch.byType(realtime.EventUnreadCountUpdate)
	require.Len(t, counts, 1)
	payload, ok := counts[0].Payload.(realtime.UnreadCountPayload)
	require.True(t, ok)
	assert.Equal(t, int64(1), payload.Count, "pushed count must come from the store, not the stale entry")

	count, err := f.counter.Count(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMarkReadInvalidatesCache(t *testing.T) {
	cache := newFakeCountCache()
	f := newProducerFixtureWithCache(t, cache)
	ctx := context.Background()

	owner := f.createUser(t, "owner")
	sender := f.createUser(t, "sender")

	for i := 0; i < 3; i++ {
		_, err := f.producer.Record(ctx, owner.ID, sender.ID, models.NotificationFollow, nil, nil, "")
		require.NoError(t, err)
	}

	count, err := f.counter.Count(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
	require.True(t, cache.has(counterKey(owner.ID)))

	updated, err := f.counter.MarkRead(ctx, owner.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)
	assert.False(t, cache.has(counterKey(owner.ID)), "mark-read must drop the cached count")

	count, err = f.counter.Count(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCountCacheErrorsFallThroughToStore(t *testing.T) {
	cache := newFakeCountCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	f := newProducerFixtureWithCache(t, cache)
	ctx := context.Background()

	owner := f.createUser(t, "owner")
	sender := f.createUser(t, "sender")

	_, err := f.producer.Record(ctx, owner.ID, sender.ID, models.NotificationFollow, nil, nil, "")
	require.NoError(t, err)

	count, err := f.counter.Count(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "a broken cache must not break counting")
}
