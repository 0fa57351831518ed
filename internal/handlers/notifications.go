package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/blanx-app/backend/internal/repository"
	"github.com/gin-gonic/gin"
)

// GetNotifications returns a page of the user's notifications, newest
// first, with sender/post/comment resolved. This is the reconciliation
// surface: clients poll it (the web client every 30s) and merge by id,
// treating these rows as authoritative over anything pushed.
// GET /api/notifications?page=1&limit=20
func (h *Handlers) GetNotifications(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	notifications, total, err := h.notifications.ListByRecipient(
		c.Request.Context(), userID.(string), limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_get_notifications", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"total":         total,
		"hasMore":       total > int64(page*limit),
	})
}

// GetUnreadCount returns the user's unread notification count, derived
// from the store.
// GET /api/notifications/unread-count
func (h *Handlers) GetUnreadCount(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
		return
	}

	count, err := h.producer.Counter().Count(c.Request.Context(), userID.(string))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_get_count", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// MarkNotificationsRead marks notifications as read. With a non-empty
// notificationIds body field only those are marked (ids owned by other
// users are ignored); with none, everything unread is marked. The
// refreshed count is pushed to the user's open sessions.
// PATCH /api/notifications/mark-read
func (h *Handlers) MarkNotificationsRead(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
		return
	}

	var req struct {
		NotificationIDs []string `json:"notificationIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	updated, err := h.producer.MarkRead(c.Request.Context(), userID.(string), req.NotificationIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_mark_read", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"updated": updated,
	})
}

// DeleteNotification removes one of the user's own notifications.
// DELETE /api/notifications/:id
func (h *Handlers) DeleteNotification(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
		return
	}

	err := h.notifications.Delete(c.Request.Context(), userID.(string), c.Param("id"))
	if errors.Is(err, repository.ErrNotificationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification_not_found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_delete", "message": err.Error()})
		return
	}

	// The deleted row may have been unread; keep cache and badge honest.
	h.producer.Counter().Invalidate(c.Request.Context(), userID.(string))
	h.producer.RefreshUnread(c.Request.Context(), userID.(string))

	c.JSON(http.StatusOK, gin.H{"success": true})
}
