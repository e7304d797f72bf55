package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/events"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/ports"
)

// EventType is an alias to the domain type
type EventType = events.EventType

// EventHandler is the handler type shared with ports.
type EventHandler = ports.EventHandler

type subscription struct {
	id      uint64
	handler EventHandler
}

// EventBus manages the in-process publish-subscribe system.
// It implements ports.EventPublisher.
type EventBus struct {
	handlers map[EventType][]subscription
	nextID   uint64
	logger   *zap.Logger
	mu       sync.RWMutex
}

var _ ports.EventPublisher = (*EventBus)(nil)

// NewEventBus creates a new EventBus instance
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		handlers: make(map[EventType][]subscription),
		logger:   logger,
	}
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.handlers[eventType] = append(eb.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()

		subs := eb.handlers[eventType]
		for i, s := range subs {
			if s.id == id {
				eb.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Publish runs every handler for the event in registration order and stops at the first error.
func (eb *EventBus) Publish(ctx context.Context, eventType EventType, payload events.Payload) error {
	eb.mu.RLock()
	subs := eb.handlers[eventType]
	eb.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler(ctx, payload); err != nil {
			return fmt.Errorf("event handler error for %s: %w", eventType, err)
		}
	}
	return nil
}

// PublishAsync publishes an event on a background context
func (eb *EventBus) PublishAsync(eventType EventType, payload events.Payload) {
	go func() {
		if err := eb.Publish(context.Background(), eventType, payload); err != nil {
			eb.logger.Warn("async event publish failed", zap.String("event_type", eventType.String()), zap.Error(err))
		}
	}()
}

// HandlerCount returns the number of handlers subscribed to an event type.
func (eb *EventBus) HandlerCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.handlers[eventType])
}

// Clear removes all handlers (useful for testing)
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers = make(map[EventType][]subscription)
}
