package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/blanx-app/backend/internal/logger"
	"github.com/blanx-app/backend/internal/metrics"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024 // 64KB

	// Send buffer size
	sendBufferSize = 256
)

// TokenVerifier resolves a join token to a user id. The auth
// collaborator owns token issuance; the channel only verifies.
type TokenVerifier func(token string) (userID string, err error)

// Client adapts one WebSocket connection into a Channel. The connection
// starts unbound; a valid join message binds it in the registry, and
// disconnect (or a failed push) unbinds it.
type Client struct {
	id   string
	conn *websocket.Conn

	registry *Registry
	verify   TokenVerifier

	// Buffered channel of outbound messages
	send chan []byte

	// Connection metadata
	ConnectedAt time.Time
	RemoteAddr  string
	UserAgent   string

	rateLimiter *RateLimiter

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	userID string // set on successful join
	closed bool
}

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	tokens    float64
	maxTokens float64
	refill    float64
	lastTime  time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxPerSecond int, burst int) *RateLimiter {
	return &RateLimiter{
		tokens:    float64(burst),
		maxTokens: float64(burst),
		refill:    float64(maxPerSecond),
		lastTime:  time.Now(),
	}
}

// Allow checks if an action is allowed and consumes a token
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastTime).Seconds()
	r.lastTime = now

	r.tokens += elapsed * r.refill
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// NewClient creates a Client over an accepted WebSocket connection.
func NewClient(conn *websocket.Conn, registry *Registry, verify TokenVerifier) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:          uuid.New().String(),
		conn:        conn,
		registry:    registry,
		verify:      verify,
		send:        make(chan []byte, sendBufferSize),
		ConnectedAt: time.Now(),
		rateLimiter: NewRateLimiter(10, 20),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID implements Channel
func (c *Client) ID() string {
	return c.id
}

// Deliver implements Channel. It never blocks: a full send buffer is an
// error so the dispatcher can unbind the connection.
func (c *Client) Deliver(msg *Message) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return fmt.Errorf("connection closed")
	}
	c.mu.RUnlock()

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("connection shutting down")
	default:
		return fmt.Errorf("send buffer full")
	}
}

// UserID returns the bound user, empty until a successful join.
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// ReadPump pumps messages from the WebSocket connection. It blocks
// until the peer disconnects, then unbinds the channel.
func (c *Client) ReadPump() {
	defer func() {
		c.registry.Unbind(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		readCtx, readCancel := context.WithTimeout(c.ctx, pongWait)
		_, data, err := c.conn.Read(readCtx)
		readCancel()

		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				logger.Log.Info("Client disconnected normally", logger.WithChannelID(c.id))
			} else if c.ctx.Err() == nil {
				logger.Log.Warn("Read error for client", logger.WithChannelID(c.id), zap.Error(err))
			}
			return
		}

		if !c.rateLimiter.Allow() {
			c.sendError("rate_limited", "Too many messages, please slow down")
			continue
		}

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			logger.Log.Warn("WebSocket JSON parse error", logger.WithChannelID(c.id), zap.Error(err))
			c.sendError("invalid_json", "Failed to parse message")
			continue
		}

		c.handleMessage(&message)
	}
}

// WritePump pumps queued messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "server shutdown")
			return

		case message, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "closing")
				return
			}

			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()

			if err != nil {
				logger.Log.Warn("Write error for client", logger.WithChannelID(c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()

			if err != nil {
				logger.Log.Debug("Ping failed for client", logger.WithChannelID(c.id), zap.Error(err))
				return
			}
		}
	}
}

// handleMessage routes incoming messages
func (c *Client) handleMessage(message *Message) {
	switch message.Type {
	case EventPing, "heartbeat": // "heartbeat" is an alias for ping
		c.handlePing(message)

	case EventJoin:
		c.handleJoin(message)

	default:
		logger.Log.Debug("Unknown message type",
			logger.WithChannelID(c.id),
			zap.String("type", message.Type))
		c.sendError("unknown_type", fmt.Sprintf("Unknown message type: %s", message.Type))
	}
}

// handleJoin verifies the token and binds the channel to its owner.
// A second join rebinds, replacing the previous owner.
func (c *Client) handleJoin(message *Message) {
	var join JoinPayload
	if err := message.ParsePayload(&join); err != nil || join.Token == "" {
		c.sendError("invalid_join", "join requires a token")
		return
	}

	userID, err := c.verify(join.Token)
	if err != nil {
		logger.Log.Warn("Join rejected", logger.WithChannelID(c.id), zap.Error(err))
		c.sendError("authentication_failed", "invalid or expired token")
		return
	}

	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()

	c.registry.Bind(c, userID)

	logger.Log.Info("Channel bound",
		logger.WithChannelID(c.id),
		logger.WithUserID(userID),
		zap.Int("connections", c.registry.ConnectionCount(userID)),
	)

	reply := NewReply(message, EventJoined, JoinedPayload{
		UserID:    userID,
		ChannelID: c.id,
	})
	// Best-effort - the connection may already be tearing down
	_ = c.Deliver(reply)
}

// handlePing responds to ping messages with pong
func (c *Client) handlePing(message *Message) {
	var ping PingPayload
	if err := message.ParsePayload(&ping); err != nil {
		ping.ClientTime = 0
	}

	serverTime := time.Now().UnixMilli()

	pong := NewReply(message, EventPong, PongPayload{
		ClientTime: ping.ClientTime,
		ServerTime: serverTime,
		Latency:    serverTime - ping.ClientTime,
	})

	_ = c.Deliver(pong)
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	_ = c.Deliver(NewErrorMessage(code, message))
}

// Close implements Channel
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.conn.Close(websocket.StatusNormalClosure, "closing")
	metrics.Get().ActiveConnections.Dec()
}

// IsClosed returns whether the client connection is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
