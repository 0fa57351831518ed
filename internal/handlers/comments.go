package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/blanx-app/backend/internal/database"
	"github.com/blanx-app/backend/internal/logger"
	"github.com/blanx-app/backend/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// CreateComment adds a comment to a post. The post owner is notified
// (kind comment, carrying post + comment references and a snapshot of
// the comment text); @username mentions notify the mentioned users.
// POST /api/posts/:id/comments
func (h *Handlers) CreateComment(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
		return
	}
	uid := userID.(string)
	postID := c.Param("id")
	ctx := c.Request.Context()

	var req struct {
		Content string `json:"content" binding:"required,max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	var post models.Post
	err := database.DB.WithContext(ctx).First(&post, "id = ?", postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_comment", "message": err.Error()})
		return
	}

	comment := models.Comment{
		PostID:   postID,
		AuthorID: uid,
		Content:  req.Content,
	}
	if err := database.DB.WithContext(ctx).Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_comment", "message": err.Error()})
		return
	}
	database.DB.WithContext(ctx).Model(&post).
		UpdateColumn("comment_count", gorm.Expr("comment_count + 1"))

	// Best-effort notifications; the comment stands regardless.
	if _, err := h.producer.Record(ctx, post.PosterID, uid, models.NotificationComment, &post.ID, &comment.ID, req.Content); err != nil {
		logger.Log.Error("Comment notification failed",
			logger.WithUserID(post.PosterID), zap.Error(err))
	}
	h.notifyMentions(ctx, &post, &comment)

	// Return the comment with its author resolved
	var resolved models.Comment
	if err := database.DB.WithContext(ctx).Preload("Author").First(&resolved, "id = ?", comment.ID).Error; err != nil {
		resolved = comment
	}

	c.JSON(http.StatusCreated, gin.H{"comment": resolved})
}

// notifyMentions scans the comment body for @username tokens and
// notifies each mentioned user once. The author and the post owner are
// skipped - the owner already got the comment notification.
func (h *Handlers) notifyMentions(ctx context.Context, post *models.Post, comment *models.Comment) {
	matches := mentionPattern.FindAllStringSubmatch(comment.Content, -1)
	if len(matches) == 0 {
		return
	}

	seen := make(map[string]bool)
	usernames := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			usernames = append(usernames, m[1])
		}
	}

	var users []models.User
	if err := database.DB.WithContext(ctx).Where("username IN ?", usernames).Find(&users).Error; err != nil {
		logger.Log.Error("Mention lookup failed", zap.Error(err))
		return
	}

	for _, user := range users {
		if user.ID == comment.AuthorID || user.ID == post.PosterID {
			continue
		}
		if _, err := h.producer.Record(ctx, user.ID, comment.AuthorID, models.NotificationMention, &post.ID, &comment.ID, comment.Content); err != nil {
			logger.Log.Error("Mention notification failed",
				logger.WithUserID(user.ID), zap.Error(err))
		}
	}
}

// GetComments returns a post's comments, newest first.
// GET /api/posts/:id/comments
func (h *Handlers) GetComments(c *gin.Context) {
	var comments []models.Comment
	err := database.DB.WithContext(c.Request.Context()).
		Preload("Author").
		Where("post_id = ?", c.Param("id")).
		Order("created_at DESC").
		Find(&comments).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_get_comments", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": comments})
}
