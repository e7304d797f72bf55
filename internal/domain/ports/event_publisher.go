package ports

import (
	"context"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/events"
)

// EventHandler handles one delivered event
type EventHandler func(ctx context.Context, payload events.Payload) error

// EventPublisher provides event publishing capabilities.
type EventPublisher interface {
	// Subscribe registers a handler for a specific event type and returns its unsubscribe func.
	Subscribe(eventType events.EventType, handler EventHandler) func()

	// Publish dispatches an event to all registered handlers.
	Publish(ctx context.Context, eventType events.EventType, payload events.Payload) error
}

// EventEnqueuer stores an event for delivery after the surrounding transaction commits.
type EventEnqueuer interface {
	Enqueue(ctx context.Context, eventType events.EventType, payload events.Payload) error
}
