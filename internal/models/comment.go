package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is a comment on a post.
type Comment struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	PostID   string `gorm:"not null;index" json:"post_id"`
	Post     Post   `gorm:"foreignKey:PostID" json:"post,omitempty"`
	AuthorID string `gorm:"not null;index" json:"author_id"`
	Author   User   `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	Content string `gorm:"not null;size:500" json:"content"`
	Edited  bool   `gorm:"default:false" json:"edited"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
