// Package realtime carries notifications from the event producer to
// connected clients. A Registry tracks which channels belong to which
// user, a Dispatcher fans a payload out to all of a user's channels,
// and Client adapts a WebSocket connection into a Channel.
//
// Delivery is fire-and-forget: a push to a user with no open channels
// is dropped, and clients reconcile through the pull endpoints. Uses
// github.com/coder/websocket for the transport.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// FlexibleTime handles both Unix millisecond timestamps and RFC3339 strings
type FlexibleTime struct {
	time.Time
}

// UnmarshalJSON implements custom unmarshaling for timestamps
func (ft *FlexibleTime) UnmarshalJSON(b []byte) error {
	var ms int64
	if err := json.Unmarshal(b, &ms); err == nil {
		ft.Time = time.UnixMilli(ms)
		return nil
	}

	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("timestamp must be Unix milliseconds (integer) or RFC3339 string")
	}

	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return err
	}
	ft.Time = t
	return nil
}

// MarshalJSON implements custom marshaling (always output as RFC3339)
func (ft FlexibleTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ft.Time)
}

// Event types for the realtime channel
const (
	// Connection lifecycle
	EventSystem = "system"
	EventPing   = "ping"
	EventPong   = "pong"
	EventError  = "error"

	// Session binding. A channel is useless until the client sends a
	// join carrying a valid token; the server answers with joined.
	EventJoin   = "join"
	EventJoined = "joined"

	// Notification pushes. Names match what the web client listens for.
	EventNewNotification   = "new_notification"
	EventUnreadCountUpdate = "unread_count_update"
)

// Message is the envelope for everything sent over a channel.
type Message struct {
	// Type identifies the event for routing
	Type string `json:"type"`

	// Payload contains the event-specific data
	Payload interface{} `json:"payload,omitempty"`

	// ID is a unique message identifier for acknowledgment
	ID string `json:"id,omitempty"`

	// ReplyTo references the original message ID for responses
	ReplyTo string `json:"reply_to,omitempty"`

	// Timestamp when the message was created (accepts Unix ms or RFC3339)
	Timestamp FlexibleTime `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(eventType string, payload interface{}) *Message {
	return &Message{
		Type:      eventType,
		Payload:   payload,
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// NewReply creates a reply message to an original message
func NewReply(original *Message, eventType string, payload interface{}) *Message {
	return &Message{
		Type:      eventType,
		ReplyTo:   original.ID,
		Payload:   payload,
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(code string, message string) *Message {
	return &Message{
		Type: EventError,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// ParsePayload unmarshals the payload into a specific type
func (m *Message) ParsePayload(target interface{}) error {
	if m.Payload == nil {
		return nil
	}

	// Re-marshal and unmarshal to properly type the payload
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// ErrorPayload represents an error message payload
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PingPayload represents a ping message payload
type PingPayload struct {
	ClientTime int64 `json:"client_time"`
}

// PongPayload represents a pong message payload
type PongPayload struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
	Latency    int64 `json:"latency_ms"`
}

// JoinPayload carries the client's token when binding a channel
type JoinPayload struct {
	Token string `json:"token"`
}

// JoinedPayload confirms a successful bind
type JoinedPayload struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
}

// UnreadCountPayload carries the recomputed unread count
type UnreadCountPayload struct {
	Count int64 `json:"count"`
}

// SystemPayload represents system event payloads
type SystemPayload struct {
	Event   string                 `json:"event"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
