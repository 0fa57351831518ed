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

// FollowUser toggles following another user. A new follow notifies the
// followee; unfollowing is silent.
// POST /api/users/:id/follow
func (h *Handlers) FollowUser(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
		return
	}
	uid := userID.(string)
	targetID := c.Param("id")
	ctx := c.Request.Context()

	if targetID == uid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot_follow_self"})
		return
	}

	var target models.User
	err := database.DB.WithContext(ctx).First(&target, "id = ?", targetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_follow", "message": err.Error()})
		return
	}

	var existing models.Follow
	err = database.DB.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", uid, targetID).
		First(&existing).Error

	if err == nil {
		// Unfollow
		if err := database.DB.WithContext(ctx).Delete(&existing).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_unfollow", "message": err.Error()})
			return
		}
		h.updateFollowCounts(c, uid, targetID)
		c.JSON(http.StatusOK, gin.H{"following": false})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_follow", "message": err.Error()})
		return
	}

	follow := models.Follow{FollowerID: uid, FolloweeID: targetID}
	if err := database.DB.WithContext(ctx).Create(&follow).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_follow", "message": err.Error()})
		return
	}
	h.updateFollowCounts(c, uid, targetID)

	// Best-effort: the follow stands even if the notification fails.
	if _, err := h.producer.Record(ctx, targetID, uid, models.NotificationFollow, nil, nil, ""); err != nil {
		logger.Log.Error("Follow notification failed",
			logger.WithUserID(targetID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"following": true})
}

// updateFollowCounts recomputes the cached follower/following counts
// from the follows table.
func (h *Handlers) updateFollowCounts(c *gin.Context, followerID, followeeID string) {
	ctx := c.Request.Context()

	var followers, following int64
	database.DB.WithContext(ctx).Model(&models.Follow{}).
		Where("followee_id = ?", followeeID).Count(&followers)
	database.DB.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", followerID).Count(&following)

	database.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", followeeID).UpdateColumn("follower_count", followers)
	database.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", followerID).UpdateColumn("following_count", following)
}

// GetUserProfile returns a user's public profile.
// GET /api/users/:id/profile
func (h *Handlers) GetUserProfile(c *gin.Context) {
	var user models.User
	err := database.DB.WithContext(c.Request.Context()).First(&user, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_get_user", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
