package amqp

import (
	"context"
	"log/slog"

	"timetrack/internal/events"
)

// EventPublisher is satisfied by *Client.
type EventPublisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Relay returns a bus handler that forwards every event to the broker.
// Failures are logged and never reach the request that caused the event.
func Relay(pub EventPublisher) events.Handler {
	return func(ctx context.Context, e events.Event) {
		if err := pub.Publish(ctx, e); err != nil {
			slog.ErrorContext(ctx, "Failed to publish event",
				"error", err,
				"type", e.Type,
				"entity_id", e.EntityID)
		}
	}
}
