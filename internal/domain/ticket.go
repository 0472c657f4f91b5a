package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen           TicketStatus = "OPEN"
	TicketStatusPending        TicketStatus = "PENDING"
	TicketStatusAwaitingVendor TicketStatus = "AWAITING_VENDOR"
	TicketStatusResolved       TicketStatus = "RESOLVED"
	TicketStatusClosed         TicketStatus = "CLOSED"
	TicketStatusEscalated      TicketStatus = "ESCALATED"
)

// TicketSeverity enumerates SLA urgency.
type TicketSeverity string

const (
	SeverityLow      TicketSeverity = "LOW"
	SeverityNormal   TicketSeverity = "NORMAL"
	SeverityHigh     TicketSeverity = "HIGH"
	SeverityCritical TicketSeverity = "CRITICAL"
)

// TicketCategory groups tickets for routing and reporting.
type TicketCategory string

const (
	CategoryBilling   TicketCategory = "BILLING"
	CategoryTechnical TicketCategory = "TECHNICAL"
	CategoryAccount   TicketCategory = "ACCOUNT"
	CategoryOrder     TicketCategory = "ORDER"
	CategoryOther     TicketCategory = "OTHER"
)

// Ticket is the aggregate for support requests. SlaDueAt is fixed at creation
// from severity; status changes only through the state machine.
type Ticket struct {
	ID             string
	ExternalKey    string
	Subject        string
	Description    string
	Severity       TicketSeverity
	Category       TicketCategory
	Status         TicketStatus
	RequesterID    string
	AssignedToID   *string
	RelatedUserID  *string
	RelatedOrderID *string
	Tags           []string
	SlaDueAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClosedAt       *time.Time
}

// IsTerminal reports whether the status only permits an explicit reopen.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusClosed
}
