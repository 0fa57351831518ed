package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationKind classifies what triggered a notification.
type NotificationKind string

const (
	NotificationLike    NotificationKind = "like"
	NotificationComment NotificationKind = "comment"
	NotificationFollow  NotificationKind = "follow"
	NotificationMention NotificationKind = "mention"
)

// Valid reports whether the kind is one of the recognized values.
func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationLike, NotificationComment, NotificationFollow, NotificationMention:
		return true
	}
	return false
}

// Notification is the durable record of something a user should see.
// Rows are append-only: only the Read flag ever changes, and only from
// false to true.
type Notification struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	RecipientID string `gorm:"not null;index:idx_notifications_recipient_read,priority:1" json:"recipient_id"`
	SenderID    string `gorm:"not null" json:"sender_id"`
	Sender      User   `gorm:"foreignKey:SenderID" json:"sender,omitempty"`

	Kind NotificationKind `gorm:"not null;size:16" json:"kind"`

	// Subject references: like/comment carry a post, comment also
	// carries the comment, follow carries neither.
	PostID    *string  `gorm:"index" json:"post_id,omitempty"`
	Post      *Post    `gorm:"foreignKey:PostID" json:"post,omitempty"`
	CommentID *string  `json:"comment_id,omitempty"`
	Comment   *Comment `gorm:"foreignKey:CommentID" json:"comment,omitempty"`

	Read bool `gorm:"not null;default:false;index:idx_notifications_recipient_read,priority:2" json:"read"`

	// Text snapshot taken at creation time so rendering survives later
	// edits or deletion of the subject.
	Content string `gorm:"type:text" json:"content"`

	CreatedAt time.Time `gorm:"index:idx_notifications_recipient_read,priority:3,sort:desc" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return nil
}
