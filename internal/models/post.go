package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a feed post.
type Post struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	PosterID string `gorm:"not null;index" json:"poster_id"`
	Poster   User   `gorm:"foreignKey:PosterID" json:"poster,omitempty"`

	Title   string `gorm:"not null;size:200" json:"title"`
	Content string `gorm:"not null;size:2000" json:"content"`

	// Cached counters, bumped by the like/comment handlers
	LikeCount    int  `gorm:"default:0" json:"like_count"`
	CommentCount int  `gorm:"default:0" json:"comment_count"`
	Edited       bool `gorm:"default:false" json:"edited"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
