package push

import (
	"context"

	"github.com/spec-kit/support-core/internal/events"
)

// Bridge forwards dispatcher events to the hub. The dispatcher invokes
// handlers synchronously on the publishing goroutine, so frames reach the
// hub in the order the state machine committed the mutations.
type Bridge struct {
	hub *Hub
}

// NewBridge constructs the bridge.
func NewBridge(hub *Hub) *Bridge {
	return &Bridge{hub: hub}
}

// RegisterHandlers subscribes the bridge to all ticket events.
func (b *Bridge) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.SubscribeAll(b.handle)
	dispatcher.Subscribe(events.EventTicketAssigned, b.handleAssigned)
}

func (b *Bridge) handle(ctx context.Context, event events.Event) error {
	b.hub.Broadcast(event.TicketID, string(event.Type), event.Payload)
	return nil
}

// handleAssigned additionally sends a targeted notification to the new
// assignee, on top of the broadcast every subscriber already received.
func (b *Bridge) handleAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok || payload.AssignedToID == "" {
		return nil
	}
	b.hub.Notify(payload.AssignedToID, event.TicketID, string(events.EventTicketAssigned), event.Payload)
	return nil
}
