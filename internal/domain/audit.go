package domain

import "time"

// AuditAction identifies the mutation recorded by a chain event.
type AuditAction string

const (
	AuditActionCreated         AuditAction = "CREATED"
	AuditActionAssigned        AuditAction = "ASSIGNED"
	AuditActionMessageAdded    AuditAction = "MESSAGE_ADDED"
	AuditActionStatusChanged   AuditAction = "STATUS_CHANGED"
	AuditActionEscalated       AuditAction = "ESCALATED"
	AuditActionClosed          AuditAction = "CLOSED"
	AuditActionReopened        AuditAction = "REOPENED"
	AuditActionSeverityChanged AuditAction = "SEVERITY_CHANGED"
	AuditActionCategoryChanged AuditAction = "CATEGORY_CHANGED"
	AuditActionTagsChanged     AuditAction = "TAGS_CHANGED"
	AuditActionDeleted         AuditAction = "DELETED"
)

// AuditEvent is one hash-linked record in a per-scope chain. SelfHash covers
// PrevHash plus the canonical payload, so any mutation, reordering, or fork is
// detectable on replay. Events are created once and never modified.
type AuditEvent struct {
	ID         string
	Scope      string
	Action     AuditAction
	ActorID    string
	DiffBefore map[string]any
	DiffAfter  map[string]any
	Severity   TicketSeverity
	OccurredAt time.Time
	PrevHash   string
	SelfHash   string
}

// TicketScope builds the audit scope identifier for a ticket chain.
func TicketScope(ticketID string) string {
	return "ticket:" + ticketID
}
