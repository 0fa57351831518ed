package repository

import (
	"context"
	"errors"
	"time"

	"github.com/blanx-app/backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidInput         = errors.New("invalid input")
)

// NotificationRepository handles all database operations for
// notifications. It is the only owner of notification rows; the unread
// counter and the reconciliation endpoints read through it so there is
// a single authority for durable state.
type NotificationRepository interface {
	// Create inserts a notification row.
	Create(ctx context.Context, notification *models.Notification) error

	// GetResolved reloads a notification with sender, post and comment
	// preloaded, for self-contained push payloads.
	GetResolved(ctx context.Context, id string) (*models.Notification, error)

	// ListByRecipient returns a page of notifications newest-first,
	// resolved, plus the total row count for the recipient.
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*models.Notification, int64, error)

	// CountUnread counts rows with read=false for the recipient.
	CountUnread(ctx context.Context, recipientID string) (int64, error)

	// MarkRead flips read=false rows to read for the recipient. With a
	// non-empty id set only those rows are touched; ids owned by other
	// recipients are silently ignored. With no ids, every unread row for
	// the recipient is marked. Returns the number of rows updated.
	MarkRead(ctx context.Context, recipientID string, ids []string) (int64, error)

	// Delete removes a notification owned by the recipient.
	Delete(ctx context.Context, recipientID, id string) error

	// PruneRead deletes read rows older than the cutoff, returning the
	// affected recipient ids so cached counts can be invalidated.
	PruneRead(ctx context.Context, before time.Time) ([]string, int64, error)
}

// notificationRepository implements NotificationRepository
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification == nil {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) GetResolved(ctx context.Context, id string) (*models.Notification, error) {
	var notification models.Notification
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Post").
		Preload("Comment").
		First(&notification, "id = ?", id).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*models.Notification, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ?", recipientID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var notifications []*models.Notification
	err = r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Post").
		Preload("Comment").
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, recipientID string, ids []string) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false)

	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}

	result := query.Update("read", true)
	return result.RowsAffected, result.Error
}

func (r *notificationRepository) Delete(ctx context.Context, recipientID, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Delete(&models.Notification{})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *notificationRepository) PruneRead(ctx context.Context, before time.Time) ([]string, int64, error) {
	var recipients []string
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("read = ? AND created_at < ?", true, before).
		Distinct().
		Pluck("recipient_id", &recipients).Error
	if err != nil {
		return nil, 0, err
	}

	result := r.db.WithContext(ctx).
		Where("read = ? AND created_at < ?", true, before).
		Delete(&models.Notification{})

	return recipients, result.RowsAffected, result.Error
}
