// Package notify is the core of the notification subsystem: the event
// producer that records notifications and fans them out, and the unread
// counter that keeps badge state consistent with the store.
//
// Recording is best-effort relative to the action it decorates: a like
// or comment never fails because its notification could not be written,
// and a push never fails the record that preceded it.
package notify

import (
	"context"
	"fmt"

	"github.com/blanx-app/backend/internal/logger"
	"github.com/blanx-app/backend/internal/metrics"
	"github.com/blanx-app/backend/internal/models"
	"github.com/blanx-app/backend/internal/realtime"
	"github.com/blanx-app/backend/internal/repository"
	"go.uber.org/zap"
)

// Producer records notifications and pushes them to the recipient's
// live sessions.
type Producer struct {
	repo       repository.NotificationRepository
	counter    *Counter
	dispatcher *realtime.Dispatcher
}

// NewProducer wires the producer to its store, counter and dispatcher.
func NewProducer(repo repository.NotificationRepository, counter *Counter, dispatcher *realtime.Dispatcher) *Producer {
	return &Producer{
		repo:       repo,
		counter:    counter,
		dispatcher: dispatcher,
	}
}

// Record creates a notification and delivers it. Steps, each
// independently fallible without rolling back the previous ones:
// insert the row, recompute the unread count, push the resolved
// notification, push the refreshed count.
//
// A self-notification (recipient == sender) returns (nil, nil) and
// writes nothing. Only validation and store failures surface to the
// caller; push failures are logged and swallowed because delivery is a
// latency optimization, not a correctness requirement.
func (p *Producer) Record(ctx context.Context, recipientID, senderID string, kind models.NotificationKind, postID, commentID *string, content string) (*models.Notification, error) {
	// The actor never hears about their own action.
	if recipientID == senderID {
		metrics.Get().NotificationsSuppressed.Inc()
		return nil, nil
	}

	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	switch kind {
	case models.NotificationLike:
		if postID == nil {
			return nil, fmt.Errorf("%w: like needs a post", ErrMissingSubject)
		}
	case models.NotificationComment:
		if postID == nil || commentID == nil {
			return nil, fmt.Errorf("%w: comment needs a post and a comment", ErrMissingSubject)
		}
	}

	notification := &models.Notification{
		RecipientID: recipientID,
		SenderID:    senderID,
		Kind:        kind,
		PostID:      postID,
		CommentID:   commentID,
		Content:     content,
	}

	if err := p.repo.Create(ctx, notification); err != nil {
		metrics.Get().NotificationStoreErrors.Inc()
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	metrics.Get().NotificationsCreated.WithLabelValues(string(kind)).Inc()

	// The row exists; everything past here is best-effort delivery.
	p.counter.Invalidate(ctx, recipientID)

	count, err := p.counter.Count(ctx, recipientID)
	if err != nil {
		logger.Log.Error("Unread recount failed after insert",
			logger.WithUserID(recipientID), zap.Error(err))
		count = -1
	}

	// Resolve sender/post/comment so the push payload is self-contained
	// and the dispatcher never reads other stores.
	resolved, err := p.repo.GetResolved(ctx, notification.ID)
	if err != nil {
		logger.Log.Error("Failed to resolve notification for push",
			zap.String("notification_id", notification.ID), zap.Error(err))
	} else {
		p.dispatcher.Push(recipientID, realtime.EventNewNotification, resolved)
	}

	if count >= 0 {
		p.dispatcher.Push(recipientID, realtime.EventUnreadCountUpdate, realtime.UnreadCountPayload{Count: count})
	}

	return notification, nil
}

// MarkRead marks notifications read and pushes the refreshed count to
// the recipient's live sessions so open tabs update without a refresh.
func (p *Producer) MarkRead(ctx context.Context, recipientID string, ids []string) (int64, error) {
	updated, err := p.counter.MarkRead(ctx, recipientID, ids)
	if err != nil {
		return 0, err
	}

	p.RefreshUnread(ctx, recipientID)
	return updated, nil
}

// RefreshUnread recomputes the recipient's unread count from the store
// and pushes it. Failures are absorbed; the poll path corrects later.
func (p *Producer) RefreshUnread(ctx context.Context, recipientID string) {
	count, err := p.counter.Count(ctx, recipientID)
	if err != nil {
		logger.Log.Error("Unread recount failed",
			logger.WithUserID(recipientID), zap.Error(err))
		return
	}
	p.dispatcher.Push(recipientID, realtime.EventUnreadCountUpdate, realtime.UnreadCountPayload{Count: count})
}

// Counter exposes the unread counter for read paths.
func (p *Producer) Counter() *Counter {
	return p.counter
}
