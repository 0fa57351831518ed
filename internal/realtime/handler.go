package realtime

import (
	"net/http"
	"time"

	"github.com/blanx-app/backend/internal/logger"
	"github.com/blanx-app/backend/internal/metrics"
	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// Handler upgrades HTTP requests to WebSocket channels. The upgrade
// itself is unauthenticated; the connection stays unbound (receives
// nothing) until the client sends a join message with a valid token.
type Handler struct {
	registry *Registry
	verify   TokenVerifier
}

// NewHandler creates a WebSocket upgrade handler.
func NewHandler(registry *Registry, verify TokenVerifier) *Handler {
	return &Handler{
		registry: registry,
		verify:   verify,
	}
}

// HandleWebSocket handles WebSocket upgrade requests.
// GET /ws
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin checking is handled by the CORS layer
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", logger.WithIP(c.ClientIP()))
		return
	}

	client := NewClient(conn, h.registry, h.verify)
	client.RemoteAddr = c.ClientIP()
	client.UserAgent = c.GetHeader("User-Agent")

	metrics.Get().TotalConnections.Inc()
	metrics.Get().ActiveConnections.Inc()

	// Welcome message; the client is expected to answer with a join.
	_ = client.Deliver(NewMessage(EventSystem, SystemPayload{
		Event: "connected",
		Data: map[string]interface{}{
			"channel_id":  client.ID(),
			"server_time": time.Now().UTC().UnixMilli(),
		},
	}))

	go client.WritePump()
	client.ReadPump() // blocks until the client disconnects
}

// HandleOnlineStatus checks if specific users have bound channels.
// POST /api/realtime/online
func (h *Handler) HandleOnlineStatus(c *gin.Context) {
	var req struct {
		UserIDs []string `json:"user_ids" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	statuses := make(map[string]bool)
	for _, userID := range req.UserIDs {
		statuses[userID] = h.registry.IsUserOnline(userID)
	}

	c.JSON(http.StatusOK, gin.H{
		"statuses":  statuses,
		"timestamp": time.Now().UTC(),
	})
}
