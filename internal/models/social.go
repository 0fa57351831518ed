package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Like records one user liking one post. The composite unique index
// makes the like toggle idempotent at the database level.
type Like struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	PostID string `gorm:"not null;uniqueIndex:idx_likes_post_user" json:"post_id"`
	UserID string `gorm:"not null;uniqueIndex:idx_likes_post_user" json:"user_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (l *Like) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// Follow records follower -> followee.
type Follow struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	FollowerID string `gorm:"not null;uniqueIndex:idx_follows_pair" json:"follower_id"`
	FolloweeID string `gorm:"not null;uniqueIndex:idx_follows_pair;index" json:"followee_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (f *Follow) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}
