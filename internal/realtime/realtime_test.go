package realtime

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/blanx-app/backend/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	_ = logger.Initialize("error", "")
	os.Exit(m.Run())
}

// fakeChannel implements Channel for tests. failing makes every Deliver
// return an error, the way a dead connection would.
type fakeChannel struct {
	id      string
	failing bool

	mu        sync.Mutex
	delivered []*Message
	closed    bool
}

func newFakeChannel(id string) *fakeChannel {
	return &fakeChannel{id: id}
}

func (f *fakeChannel) ID() string { return f.id }

func (f *fakeChannel) Deliver(msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("send buffer full")
	}
	f.delivered = append(f.delivered, msg)
	return nil
}

func (f *fakeChannel) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeChannel) messages() []*Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Message, len(f.delivered))
	copy(out, f.delivered)
	return out
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestRegistryBindAndChannelsFor(t *testing.T) {
	r := NewRegistry()

	assert.Empty(t, r.ChannelsFor("user-1"))
	assert.False(t, r.IsUserOnline("user-1"))

	ch := newFakeChannel("ch-1")
	r.Bind(ch, "user-1")

	channels := r.ChannelsFor("user-1")
	assert.Len(t, channels, 1)
	assert.Equal(t, "ch-1", channels[0].ID())
	assert.True(t, r.IsUserOnline("user-1"))
	assert.Equal(t, 1, r.ConnectionCount("user-1"))

	owner, ok := r.Owner(ch)
	assert.True(t, ok)
	assert.Equal(t, "user-1", owner)
}

func TestRegistryMultipleChannelsPerUser(t *testing.T) {
	r := NewRegistry()

	// Two tabs for the same user
	tab1 := newFakeChannel("tab-1")
	tab2 := newFakeChannel("tab-2")
	r.Bind(tab1, "user-1")
	r.Bind(tab2, "user-1")

	assert.Equal(t, 2, r.ConnectionCount("user-1"))
	assert.Len(t, r.ChannelsFor("user-1"), 2)

	// Closing one tab leaves the other bound
	r.Unbind(tab1)
	channels := r.ChannelsFor("user-1")
	assert.Len(t, channels, 1)
	assert.Equal(t, "tab-2", channels[0].ID())
}

func TestRegistryRebindReplacesOwner(t *testing.T) {
	r := NewRegistry()

	ch := newFakeChannel("ch-1")
	r.Bind(ch, "user-1")
	r.Bind(ch, "user-2")

	assert.Empty(t, r.ChannelsFor("user-1"))
	assert.False(t, r.IsUserOnline("user-1"))

	channels := r.ChannelsFor("user-2")
	assert.Len(t, channels, 1)

	owner, ok := r.Owner(ch)
	assert.True(t, ok)
	assert.Equal(t, "user-2", owner)
}

func TestRegistryUnbindIsIdempotent(t *testing.T) {
	r := NewRegistry()

	ch := newFakeChannel("ch-1")
	r.Unbind(ch) // never bound

	r.Bind(ch, "user-1")
	r.Unbind(ch)
	r.Unbind(ch) // already gone

	assert.False(t, r.IsUserOnline("user-1"))
	_, ok := r.Owner(ch)
	assert.False(t, ok)
}

func TestRegistryOnlineUsers(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.OnlineUsers())

	r.Bind(newFakeChannel("a"), "user-1")
	r.Bind(newFakeChannel("b"), "user-2")

	users := r.OnlineUsers()
	assert.Len(t, users, 2)
	assert.Contains(t, users, "user-1")
	assert.Contains(t, users, "user-2")
}

func TestDispatcherPushesToAllChannels(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r)

	tab1 := newFakeChannel("tab-1")
	tab2 := newFakeChannel("tab-2")
	r.Bind(tab1, "user-1")
	r.Bind(tab2, "user-1")

	d.Push("user-1", EventUnreadCountUpdate, UnreadCountPayload{Count: 3})

	for _, tab := range []*fakeChannel{tab1, tab2} {
		msgs := tab.messages()
		assert.Len(t, msgs, 1)
		assert.Equal(t, EventUnreadCountUpdate, msgs[0].Type)

		payload, ok := msgs[0].Payload.(UnreadCountPayload)
		assert.True(t, ok)
		assert.Equal(t, int64(3), payload.Count)
	}
}

func TestDispatcherOfflineRecipientIsNoOp(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r)

	// Nothing bound; must not panic or error
	d.Push("nobody", EventNewNotification, nil)
}

func TestDispatcherDropsDeadChannel(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r)

	dead := newFakeChannel("dead")
	dead.failing = true
	alive := newFakeChannel("alive")
	r.Bind(dead, "user-1")
	r.Bind(alive, "user-1")

	d.Push("user-1", EventUnreadCountUpdate, UnreadCountPayload{Count: 1})

	// The live channel still got the message
	assert.Len(t, alive.messages(), 1)

	// The dead one was closed and unbound
	assert.True(t, dead.isClosed())
	channels := r.ChannelsFor("user-1")
	assert.Len(t, channels, 1)
	assert.Equal(t, "alive", channels[0].ID())
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage(EventNewNotification, map[string]string{"test": "data"})

	assert.Equal(t, EventNewNotification, msg.Type)
	assert.NotNil(t, msg.Payload)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestNewReply(t *testing.T) {
	original := NewMessage(EventPing, nil)
	original.ID = "original-id"
	reply := NewReply(original, EventPong, nil)

	assert.Equal(t, EventPong, reply.Type)
	assert.Equal(t, "original-id", reply.ReplyTo)
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage("auth_failed", "Invalid token")

	assert.Equal(t, EventError, msg.Type)

	payload, ok := msg.Payload.(ErrorPayload)
	assert.True(t, ok)
	assert.Equal(t, "auth_failed", payload.Code)
	assert.Equal(t, "Invalid token", payload.Message)
}

func TestMessageParsePayload(t *testing.T) {
	// Payloads arrive as generic maps after JSON decoding
	msg := NewMessage(EventJoin, map[string]interface{}{
		"token": "abc123",
	})

	var join JoinPayload
	err := msg.ParsePayload(&join)
	assert.NoError(t, err)
	assert.Equal(t, "abc123", join.Token)
}

func TestMessageJSONSerialization(t *testing.T) {
	msg := NewMessage(EventUnreadCountUpdate, UnreadCountPayload{Count: 7})
	msg.ID = "msg-id"

	data, err := json.Marshal(msg)
	assert.NoError(t, err)

	var parsed Message
	err = json.Unmarshal(data, &parsed)
	assert.NoError(t, err)

	assert.Equal(t, EventUnreadCountUpdate, parsed.Type)
	assert.Equal(t, "msg-id", parsed.ID)
	assert.NotNil(t, parsed.Payload)
}

func TestFlexibleTimeAcceptsUnixMillis(t *testing.T) {
	var ft FlexibleTime
	err := json.Unmarshal([]byte("1700000000000"), &ft)
	assert.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1700000000000), ft.Time)
}

func TestFlexibleTimeAcceptsRFC3339(t *testing.T) {
	var ft FlexibleTime
	err := json.Unmarshal([]byte(`"2024-01-15T10:30:00Z"`), &ft)
	assert.NoError(t, err)
	assert.Equal(t, 2024, ft.Year())
}

func TestFlexibleTimeRejectsGarbage(t *testing.T) {
	var ft FlexibleTime
	err := json.Unmarshal([]byte(`{"bad": true}`), &ft)
	assert.Error(t, err)
}

func TestRateLimiter(t *testing.T) {
	// 5 per second with burst of 10
	rl := NewRateLimiter(5, 10)

	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow(), "Request %d should be allowed", i+1)
	}

	assert.False(t, rl.Allow(), "Request 11 should be denied")

	time.Sleep(300 * time.Millisecond)
	assert.True(t, rl.Allow(), "Request after wait should be allowed")
}
