package ws

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/adityaxdubey/whisper-rebellion/internal/metrics"
	"github.com/adityaxdubey/whisper-rebellion/internal/models"
)

// Dispatcher fans a newly persisted message out to every live connection of
// the receiver, then acknowledges the originating connection. Fan-out is
// synchronous: every delivery is enqueued before Dispatch returns.
type Dispatcher struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   logger.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch delivers msg to every connection of the receiver (zero, one or
// many) and a message_sent acknowledgment to senderHandle. A receiver with
// no live connection is not an error; the message stays retrievable through
// history. Returns the receiver delivery count and whether the ack went out.
func (d *Dispatcher) Dispatch(msg *models.Message, senderName, senderHandle string) (int, bool) {
	payload := &models.MessagePayload{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Text:       msg.Text,
		SenderName: senderName,
		CreatedAt:  msg.CreatedAt.UTC().Format(time.RFC3339),
	}

	delivered := 0
	for _, client := range d.registry.ConnectionsFor(msg.ReceiverID) {
		event := models.Event{
			ID:      ulid.Make().String(),
			Type:    models.EventNewMessage,
			Payload: payload,
		}
		if client.enqueue(event) {
			delivered++
			metrics.Deliveries.WithLabelValues("receiver").Inc()
		} else {
			d.logger.Warn().
				Str("handle", client.ID).
				Int64("receiver", msg.ReceiverID).
				Msg("delivery dropped, send buffer full")
		}
	}

	acked := false
	if sender, ok := d.registry.ClientFor(senderHandle); ok {
		event := models.Event{
			ID:      ulid.Make().String(),
			Type:    models.EventMessageSent,
			Payload: payload,
		}
		if sender.enqueue(event) {
			acked = true
			metrics.Deliveries.WithLabelValues("ack").Inc()
		}
	}

	return delivered, acked
}
