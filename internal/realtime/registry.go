package realtime

import (
	"sync"
)

// Channel is one live, addressable connection belonging to a single
// session (tab or device). Client implements it over a WebSocket; tests
// substitute fakes.
type Channel interface {
	// ID uniquely identifies the connection.
	ID() string

	// Deliver enqueues a message for the peer. It must not block; a
	// connection that cannot accept the message returns an error.
	Deliver(msg *Message) error

	// Close tears the connection down.
	Close()
}

// Registry maps user ids to their currently bound channels. It is pure
// in-process state: a restart loses every binding and clients re-join
// on reconnect. All access goes through Bind/Unbind/ChannelsFor so no
// caller ever holds the map across a suspension point.
type Registry struct {
	mu sync.RWMutex

	// channels by owner, keyed by channel id
	byOwner map[string]map[string]Channel

	// reverse index: channel id -> owner
	owners map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byOwner: make(map[string]map[string]Channel),
		owners:  make(map[string]string),
	}
}

// Bind associates a channel with a user. A channel belongs to exactly
// one user; binding again replaces the previous owner, which is what a
// reconnect-with-new-auth flow does.
func (r *Registry) Bind(ch Channel, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := ch.ID()
	if prev, ok := r.owners[id]; ok {
		r.removeLocked(prev, id)
	}

	if r.byOwner[userID] == nil {
		r.byOwner[userID] = make(map[string]Channel)
	}
	r.byOwner[userID][id] = ch
	r.owners[id] = userID
}

// Unbind removes a channel's binding. Unbinding a channel that was
// never bound is a no-op.
func (r *Registry) Unbind(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := ch.ID()
	owner, ok := r.owners[id]
	if !ok {
		return
	}
	r.removeLocked(owner, id)
}

// removeLocked drops the channel from both indexes. Caller holds mu.
func (r *Registry) removeLocked(owner, channelID string) {
	delete(r.owners, channelID)
	if set, ok := r.byOwner[owner]; ok {
		delete(set, channelID)
		if len(set) == 0 {
			delete(r.byOwner, owner)
		}
	}
}

// ChannelsFor returns a snapshot of the channels bound to a user,
// possibly empty. The snapshot is safe to iterate while other handlers
// bind and unbind concurrently.
func (r *Registry) ChannelsFor(userID string) []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.byOwner[userID]
	if !ok {
		return nil
	}

	channels := make([]Channel, 0, len(set))
	for _, ch := range set {
		channels = append(channels, ch)
	}
	return channels
}

// Owner returns the user a channel is bound to, if any.
func (r *Registry) Owner(ch Channel) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[ch.ID()]
	return owner, ok
}

// IsUserOnline checks if a user has any bound channels
func (r *Registry) IsUserOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byOwner[userID]) > 0
}

// ConnectionCount returns the number of channels bound to a user
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byOwner[userID])
}

// OnlineUsers returns the ids of all users with at least one channel
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.byOwner))
	for userID := range r.byOwner {
		users = append(users, userID)
	}
	return users
}
