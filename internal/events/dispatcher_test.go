package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishInvokesAllSubscribers(t *testing.T) {
	bus := NewInMemoryDispatcher()

	var calls []string
	bus.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.TicketID)
		return nil
	})
	bus.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.TicketID)
		return nil
	})
	bus.Subscribe(EventTicketAssigned, func(context.Context, Event) error {
		calls = append(calls, "wrong-type")
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventTicketCreated, TicketID: "t1"}))
	assert.Equal(t, []string{"first:t1", "second:t1"}, calls)
}

func TestPublishSwallowsHandlerErrors(t *testing.T) {
	bus := NewInMemoryDispatcher()

	ran := false
	bus.Subscribe(EventSLABreached, func(context.Context, Event) error {
		return errors.New("handler failure")
	})
	bus.Subscribe(EventSLABreached, func(context.Context, Event) error {
		ran = true
		return nil
	})

	// A failing subscriber neither fails the publish nor blocks the
	// subscribers after it.
	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventSLABreached}))
	assert.True(t, ran)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewInMemoryDispatcher()
	assert.NoError(t, bus.Publish(context.Background(), Event{Type: EventSLAWarning}))
}
