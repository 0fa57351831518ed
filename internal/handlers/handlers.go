package handlers

import (
	"github.com/blanx-app/backend/internal/notify"
	"github.com/blanx-app/backend/internal/repository"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	notifications repository.NotificationRepository
	producer      *notify.Producer
}

// NewHandlers creates a new handlers instance
func NewHandlers(notifications repository.NotificationRepository, producer *notify.Producer) *Handlers {
	return &Handlers{
		notifications: notifications,
		producer:      producer,
	}
}
