package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/events"
)

func TestEventBus_PublishInOrder(t *testing.T) {
	bus := NewEventBus(nil)
	var calls []string

	bus.Subscribe(events.EventOrderConfirmed, func(ctx context.Context, p events.Payload) error {
		calls = append(calls, "first:"+p.EntityID)
		return nil
	})
	bus.Subscribe(events.EventOrderConfirmed, func(ctx context.Context, p events.Payload) error {
		calls = append(calls, "second:"+p.EntityID)
		return nil
	})
	bus.Subscribe(events.PaymentPaid, func(ctx context.Context, p events.Payload) error {
		calls = append(calls, "payment")
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), events.EventOrderConfirmed, events.Payload{EntityID: "eo-1"}))
	assert.Equal(t, []string{"first:eo-1", "second:eo-1"}, calls)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(nil)
	count := 0
	unsubscribe := bus.Subscribe(events.LeadCreated, func(ctx context.Context, p events.Payload) error {
		count++
		return nil
	})
	assert.Equal(t, 1, bus.HandlerCount(events.LeadCreated))

	unsubscribe()
	assert.Equal(t, 0, bus.HandlerCount(events.LeadCreated))
	require.NoError(t, bus.Publish(context.Background(), events.LeadCreated, events.Payload{}))
	assert.Equal(t, 0, count)
}

func TestEventBus_StopsAtFirstError(t *testing.T) {
	bus := NewEventBus(nil)
	boom := errors.New("calendar unavailable")
	reached := false

	bus.Subscribe(events.EventOrderCancelled, func(ctx context.Context, p events.Payload) error { return boom })
	bus.Subscribe(events.EventOrderCancelled, func(ctx context.Context, p events.Payload) error {
		reached = true
		return nil
	})

	err := bus.Publish(context.Background(), events.EventOrderCancelled, events.Payload{})
	assert.ErrorIs(t, err, boom)
	assert.False(t, reached)
}
