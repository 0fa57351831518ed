package handlers

import (
	"errors"
	"net/http"

	"github.com/blanx-app/backend/internal/database"
	"github.com/blanx-app/backend/internal/logger"
	"github.com/blanx-app/backend/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreatePost creates a feed post. The route is wrapped in the cooldown
// middleware so a user can only post once per window.
// POST /api/posts
func (h *Handlers) CreatePost(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
		return
	}

	var req struct {
		Title   string `json:"title" binding:"required,max=200"`
		Content string `json:"content" binding:"required,max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	post := models.Post{
		PosterID: userID.(string),
		Title:    req.Title,
		Content:  req.Content,
	}
	if err := database.DB.WithContext(c.Request.Context()).Create(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_create_post", "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// GetPost returns a single post with its poster resolved.
// GET /api/posts/:id
func (h *Handlers) GetPost(c *gin.Context) {
	var post models.Post
	err := database.DB.WithContext(c.Request.Context()).
		Preload("Poster").
		First(&post, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_get_post", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}

// LikePost toggles a like on a post. A new like notifies the post
// owner; notification failure never fails the like.
// POST /api/posts/:id/like
func (h *Handlers) LikePost(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
		return
	}
	uid := userID.(string)
	postID := c.Param("id")
	ctx := c.Request.Context()

	var post models.Post
	err := database.DB.WithContext(ctx).First(&post, "id = ?", postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_like", "message": err.Error()})
		return
	}

	var existing models.Like
	err = database.DB.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, uid).
		First(&existing).Error

	if err == nil {
		// Unlike. No notification on unlike.
		if err := database.DB.WithContext(ctx).Delete(&existing).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_unlike", "message": err.Error()})
			return
		}
		database.DB.WithContext(ctx).Model(&post).
			UpdateColumn("like_count", gorm.Expr("like_count - 1"))

		c.JSON(http.StatusOK, gin.H{"liked": false})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_like", "message": err.Error()})
		return
	}

	like := models.Like{PostID: postID, UserID: uid}
	if err := database.DB.WithContext(ctx).Create(&like).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_like", "message": err.Error()})
		return
	}
	database.DB.WithContext(ctx).Model(&post).
		UpdateColumn("like_count", gorm.Expr("like_count + 1"))

	// Best-effort: the like stands even if the notification fails.
	if _, err := h.producer.Record(ctx, post.PosterID, uid, models.NotificationLike, &post.ID, nil, post.Title); err != nil {
		logger.Log.Error("Like notification failed",
			logger.WithUserID(post.PosterID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"liked": true})
}

// DeletePost removes the caller's own post.
// DELETE /api/posts/:id
func (h *Handlers) DeletePost(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
		return
	}

	var post models.Post
	err := database.DB.WithContext(c.Request.Context()).First(&post, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_delete_post", "message": err.Error()})
		return
	}
	if post.PosterID != userID.(string) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not_authorized"})
		return
	}

	if err := database.DB.WithContext(c.Request.Context()).Delete(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_delete_post", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
