package events

import (
	"time"

	"github.com/spec-kit/support-core/internal/domain"
)

// EventType enumerates supported event identifiers. The string values are
// the `type` field pushed to connected operator consoles.
type EventType string

const (
	EventTicketCreated   EventType = "created"
	EventTicketUpdated   EventType = "updated"
	EventTicketAssigned  EventType = "assigned"
	EventTicketMessage   EventType = "message"
	EventTicketClosed    EventType = "closed"
	EventTicketEscalated EventType = "escalated"
	EventTicketDeleted   EventType = "deleted"
)

// Event represents a domain event emitted by the state machine. Emission is
// synchronous and in commit order, which is what gives subscribers the
// per-ticket ordering guarantee.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Subject  string                `json:"subject"`
	Severity domain.TicketSeverity `json:"severity"`
	Category domain.TicketCategory `json:"category"`
	SlaDueAt *time.Time            `json:"sla_due_at,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Reason    string              `json:"reason,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssignedToID string `json:"assigned_to_id"`
}

// TicketFieldChangedPayload covers severity/category/tags updates.
type TicketFieldChangedPayload struct {
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// TicketMessagePayload payload.
type TicketMessagePayload struct {
	MessageID  string            `json:"message_id"`
	SenderRole domain.SenderRole `json:"sender_role"`
	Internal   bool              `json:"internal"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	Subject string `json:"subject"`
}
