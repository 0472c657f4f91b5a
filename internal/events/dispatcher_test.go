package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscribersInOrder(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	var seen []EventType
	dispatcher.Subscribe(EventTicketCreated, func(_ context.Context, event Event) error {
		seen = append(seen, event.Type)
		return nil
	})

	require.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventTicketCreated, TicketID: "t-1"}))
	require.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventTicketClosed, TicketID: "t-1"}))
	require.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventTicketCreated, TicketID: "t-2"}))

	assert.Equal(t, []EventType{EventTicketCreated, EventTicketCreated}, seen)
}

func TestWildcardSeesEveryEvent(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	var all []string
	dispatcher.SubscribeAll(func(_ context.Context, event Event) error {
		all = append(all, event.TicketID)
		return nil
	})

	require.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventTicketCreated, TicketID: "a"}))
	require.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventTicketDeleted, TicketID: "b"}))

	assert.Equal(t, []string{"a", "b"}, all)
}

func TestHandlerErrorDoesNotStopDelivery(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	dispatcher.Subscribe(EventTicketCreated, func(_ context.Context, _ Event) error {
		return assert.AnError
	})
	delivered := false
	dispatcher.Subscribe(EventTicketCreated, func(_ context.Context, _ Event) error {
		delivered = true
		return nil
	})

	require.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventTicketCreated}))
	assert.True(t, delivered)
}
