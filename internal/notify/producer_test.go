package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/blanx-app/backend/internal/logger"
	"github.com/blanx-app/backend/internal/models"
	"github.com/blanx-app/backend/internal/realtime"
	"github.com/blanx-app/backend/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", "")
	os.Exit(m.Run())
}

// fakeChannel implements realtime.Channel for dispatch assertions.
type fakeChannel struct {
	id      string
	failing bool

	mu        sync.Mutex
	delivered []*realtime.Message
}

func (f *fakeChannel) ID() string { return f.id }

func (f *fakeChannel) Deliver(msg *realtime.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("send buffer full")
	}
	f.delivered = append(f.delivered, msg)
	return nil
}

func (f *fakeChannel) Close() {}

func (f *fakeChannel) byType(eventType string) []*realtime.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*realtime.Message
	for _, m := range f.delivered {
		if m.Type == eventType {
			out = append(out, m)
		}
	}
	return out
}

type producerFixture struct {
	db       *gorm.DB
	repo     repository.NotificationRepository
	counter  *Counter
	registry *realtime.Registry
	producer *Producer
}

func newProducerFixture(t *testing.T) *producerFixture {
	return newProducerFixtureWithCache(t, nil)
}

func newProducerFixtureWithCache(t *testing.T, redis CountCache) *producerFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Notification{},
	))

	repo := repository.NewNotificationRepository(db)
	counter := NewCounter(repo, redis)
	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry)

	return &producerFixture{
		db:       db,
		repo:     repo,
		counter:  counter,
		registry: registry,
		producer: NewProducer(repo, counter, dispatcher),
	}
}

func (f *producerFixture) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", FullName: username}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *producerFixture) createPost(t *testing.T, poster *models.User) *models.Post {
	t.Helper()
	post := &models.Post{PosterID: poster.ID, Title: "A post", Content: "Some content"}
	require.NoError(t, f.db.Create(post).Error)
	return post
}

func TestRecordCreatesAndDelivers(t *testing.T) {
	f := newProducerFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner")
	liker := f.createUser(t, "liker")
	post := f.createPost(t, owner)

	ch := &fakeChannel{id: "tab-1"}
	f.registry.Bind(ch, owner.ID)

	n, err := f.producer.Record(ctx, owner.ID, liker.ID, models.NotificationLike, &post.ID, nil, post.Title)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.NotEmpty(t, n.ID)

	// Row is durable
	count, err := f.counter.Count(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// The open tab got both events
	pushes := ch.byType(realtime.EventNewNotification)
	require.Len(t, pushes, 1)
	pushed, ok := pushes[0].Payload.(*models.Notification)
	require.True(t, ok)
	assert.Equal(t, n.ID, pushed.ID)
	assert.Equal(t, "liker", pushed.Sender.Username)

	counts := ch.byType(realtime.EventUnreadCountUpdate)
	require.Len(t, counts, 1)
	payload, ok := counts[0].Payload.(realtime.UnreadCountPayload)
	require.True(t, ok)
	assert.Equal(t, int64(1), payload.Count)
}

func TestRecordSuppressesSelfNotification(t *testing.T) {
	f := newProducerFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner")
	post := f.createPost(t, owner)

	ch := &fakeChannel{id: "tab-1"}
	f.registry.Bind(ch, owner.ID)

	n, err := f.producer.Record(ctx, owner.ID, owner.ID, models.NotificationLike, &post.ID, nil, post.Title)
	assert.NoError(t, err)
	assert.Nil(t, n)

	count, err := f.counter.Count(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Empty(t, ch.byType(realtime.EventNewNotification))
	assert.Empty(t, ch.byType(realtime.EventUnreadCountUpdate))
}

func TestRecordRejectsInvalidKind(t *testing.T) {
	f := newProducerFixture(t)

	owner := f.createUser(t, "owner")
	sender := f.createUser(t, "sender")

	_, err := f.producer.Record(context.Background(), owner.ID, sender.ID, "poke", nil, nil, "")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestRecordRequiresSubject(t *testing.T) {
	f := newProducerFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner")
	sender := f.createUser(t, "sender")
	post := f.createPost(t, owner)

	// Like without a post
	_, err := f.producer.Record(ctx, owner.ID, sender.ID, models.NotificationLike, nil, nil, "")
	assert.ErrorIs(t, err, ErrMissingSubject)

	// Comment without the comment reference
	_, err = f.producer.Record(ctx, owner.ID, sender.ID, models.NotificationComment, &post.ID, nil, "")
	assert.ErrorIs(t, err, ErrMissingSubject)

	// Follow carries no subject at all
	n, err := f.producer.Record(ctx, owner.ID, sender.ID, models.NotificationFollow, nil, nil, "")
	assert.NoError(t, err)
	assert.NotNil(t, n)
}

func TestRecordReachesEveryTab(t *testing.T) {
	f := newProducerFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner")
	sender := f.createUser(t, "sender")

	tab1 := &fakeChannel{id: "tab-1"}
	tab2 := &fakeChannel{id: "tab-2"}
	f.registry.Bind(tab1, owner.ID)
	f.registry.Bind(tab2, owner.ID)

	_, err := f.producer.Record(ctx, owner.ID, sender.ID, models.NotificationFollow, nil, nil, "")
	require.NoError(t, err)

	for _, tab := range []*fakeChannel{tab1, tab2} {
		assert.Len(t, tab.byType(realtime.EventNewNotification), 1)
		assert.Len(t, tab.byType(realtime.EventUnreadCountUpdate), 1)
	}
}

func TestRecordOfflineRecipientStillDurable(t *testing.T) {
	f := newProducerFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner")
	sender := f.createUser(t, "sender")

	// No channels bound: the push is dropped, the row is not.
	n, err := f.producer.Record(ctx, owner.ID, sender.ID, models.NotificationFollow, nil, nil, "")
	require.NoError(t, err)
	require.NotNil(t, n)

	list, total, err := f.repo.ListByRecipient(ctx, owner.ID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)
}

func TestRecordSurvivesDeadChannel(t *testing.T) {
	f := newProducerFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner")
	sender := f.createUser(t, "sender")

	dead := &fakeChannel{id: "dead", failing: true}
	f.registry.Bind(dead, owner.ID)

	n, err := f.producer.Record(ctx, owner.ID, sender.ID, models.NotificationFollow, nil, nil, "")
	require.NoError(t, err)
	require.NotNil(t, n)

	// The dead channel was dropped from the registry
	assert.False(t, f.registry.IsUserOnline(owner.ID))

	count, err := f.counter.Count(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMarkReadPushesRefreshedCount(t *testing.T) {
	f := newProducerFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner")
	sender := f.createUser(t, "sender")

	for i := 0; i < 3; i++ {
		_, err := f.producer.Record(ctx, owner.ID, sender.ID, models.NotificationFollow, nil, nil, "")
		require.NoError(t, err)
	}

	ch := &fakeChannel{id: "tab-1"}
	f.registry.Bind(ch, owner.ID)

	updated, err := f.producer.MarkRead(ctx, owner.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)

	counts := ch.byType(realtime.EventUnreadCountUpdate)
	require.Len(t, counts, 1)
	payload, ok := counts[0].Payload.(realtime.UnreadCountPayload)
	require.True(t, ok)
	assert.Equal(t, int64(0), payload.Count)
}

func TestMarkReadSpecificAndForeignIDs(t *testing.T) {
	f := newProducerFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")

	n1, err := f.producer.Record(ctx, alice.ID, bob.ID, models.NotificationFollow, nil, nil, "")
	require.NoError(t, err)
	n2, err := f.producer.Record(ctx, alice.ID, bob.ID, models.NotificationFollow, nil, nil, "")
	require.NoError(t, err)

	// Bob cannot mark Alice's rows
	updated, err := f.producer.MarkRead(ctx, bob.ID, []string{n1.ID, n2.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)

	// Alice marks one of hers
	updated, err = f.producer.MarkRead(ctx, alice.ID, []string{n1.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	count, err := f.counter.Count(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Marking the same row again is a no-op
	updated, err = f.producer.MarkRead(ctx, alice.ID, []string{n1.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)
}

func TestCounterDerivedFromStore(t *testing.T) {
	f := newProducerFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner")
	sender := f.createUser(t, "sender")

	for i := 0; i < 4; i++ {
		_, err := f.producer.Record(ctx, owner.ID, sender.ID, models.NotificationFollow, nil, nil, "")
		require.NoError(t, err)
	}

	count, err := f.counter.Count(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	// A direct store write is reflected on the next read: the count is
	// derived, never independently accumulated.
	var row models.Notification
	require.NoError(t, f.db.Where("recipient_id = ?", owner.ID).First(&row).Error)
	require.NoError(t, f.db.Model(&row).Update("read", true).Error)

	count, err = f.counter.Count(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
