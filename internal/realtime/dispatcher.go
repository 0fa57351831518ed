package realtime

import (
	"github.com/blanx-app/backend/internal/logger"
	"github.com/blanx-app/backend/internal/metrics"
	"go.uber.org/zap"
)

// Dispatcher pushes payloads to every channel bound to a recipient.
// Pushes are unconfirmed: a recipient with no channels gets nothing and
// no error, and the reconciliation poll is the delivery guarantee.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Registry returns the session registry the dispatcher delivers through.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Push delivers an event to all of the recipient's channels. A channel
// that fails to accept the message is unbound and closed; the remaining
// channels still receive it. Never returns an error to the caller -
// dispatch failures are absorbed here.
func (d *Dispatcher) Push(recipientID string, eventType string, payload interface{}) {
	channels := d.registry.ChannelsFor(recipientID)
	if len(channels) == 0 {
		return
	}

	msg := NewMessage(eventType, payload)

	for _, ch := range channels {
		if err := ch.Deliver(msg); err != nil {
			logger.Log.Warn("Dropping dead channel after failed push",
				logger.WithUserID(recipientID),
				logger.WithChannelID(ch.ID()),
				zap.String("event", eventType),
				zap.Error(err),
			)
			metrics.Get().PushErrors.WithLabelValues(eventType).Inc()
			d.registry.Unbind(ch)
			ch.Close()
			continue
		}
		metrics.Get().PushesDelivered.WithLabelValues(eventType).Inc()
	}
}
