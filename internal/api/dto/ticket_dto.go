package dto

import (
	"time"

	"github.com/spec-kit/support-core/internal/domain"
	"github.com/spec-kit/support-core/internal/sla"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject        string                `json:"subject"`
	Description    string                `json:"description"`
	Severity       domain.TicketSeverity `json:"severity"`
	Category       domain.TicketCategory `json:"category"`
	RequesterID    string                `json:"requester_id"`
	RelatedUserID  *string               `json:"related_user_id"`
	RelatedOrderID *string               `json:"related_order_id"`
	Tags           []string              `json:"tags"`
}

// UpdateTicketRequest carries the patchable fields. Nil means untouched.
type UpdateTicketRequest struct {
	Status       *domain.TicketStatus   `json:"status"`
	Severity     *domain.TicketSeverity `json:"severity"`
	Category     *domain.TicketCategory `json:"category"`
	AssignedToID *string                `json:"assigned_to_id"`
	Tags         *[]string              `json:"tags"`
	Reason       string                 `json:"reason"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// CloseTicketRequest payload.
type CloseTicketRequest struct {
	Resolution string `json:"resolution"`
}

// ReopenTicketRequest payload.
type ReopenTicketRequest struct {
	Reason string `json:"reason"`
}

// EscalateTicketRequest payload.
type EscalateTicketRequest struct {
	Reason string `json:"reason"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body        string                       `json:"body"`
	Internal    bool                         `json:"internal"`
	Attachments []domain.AttachmentReference `json:"attachments"`
}

// SLAStatusResponse reports how much of the response window is consumed.
type SLAStatusResponse struct {
	Band             string     `json:"status"`
	PercentUsed      float64    `json:"percent_used"`
	MinutesRemaining int        `json:"minutes_remaining"`
	DueAt            *time.Time `json:"due_at"`
}

// TicketSummary response.
type TicketSummary struct {
	ID           string                `json:"id"`
	ExternalKey  string                `json:"external_key"`
	Subject      string                `json:"subject"`
	Status       domain.TicketStatus   `json:"status"`
	Severity     domain.TicketSeverity `json:"severity"`
	Category     domain.TicketCategory `json:"category"`
	RequesterID  string                `json:"requester_id"`
	AssignedToID *string               `json:"assigned_to_id"`
	Tags         []string              `json:"tags"`
	SlaDueAt     *time.Time            `json:"sla_due_at"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description    string                  `json:"description"`
	RelatedUserID  *string                 `json:"related_user_id"`
	RelatedOrderID *string                 `json:"related_order_id"`
	ClosedAt       *time.Time              `json:"closed_at"`
	SLA            SLAStatusResponse       `json:"sla"`
	Messages       []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse represents a thread message.
type TicketMessageResponse struct {
	ID          string                       `json:"id"`
	SenderID    string                       `json:"sender_id"`
	SenderRole  domain.SenderRole            `json:"sender_role"`
	Body        string                       `json:"body"`
	Internal    bool                         `json:"internal"`
	Attachments []domain.AttachmentReference `json:"attachments"`
	CreatedAt   time.Time                    `json:"created_at"`
}

// AuditEventResponse is one chain record in a ticket's trail.
type AuditEventResponse struct {
	ID         string                `json:"id"`
	Action     domain.AuditAction    `json:"action"`
	ActorID    string                `json:"actor_id"`
	DiffBefore map[string]any        `json:"diff_before,omitempty"`
	DiffAfter  map[string]any        `json:"diff_after,omitempty"`
	Severity   domain.TicketSeverity `json:"severity"`
	OccurredAt time.Time             `json:"occurred_at"`
	PrevHash   string                `json:"prev_hash"`
	SelfHash   string                `json:"self_hash"`
}

// TicketStatsResponse holds dashboard counters.
type TicketStatsResponse struct {
	Open       int64 `json:"open"`
	Unresolved int64 `json:"unresolved"`
	Escalated  int64 `json:"escalated"`
	Critical   int64 `json:"critical"`
	Unassigned int64 `json:"unassigned"`
}

// SLAStatus maps a computed clock reading onto the wire shape.
func SLAStatus(status sla.Status, dueAt *time.Time) SLAStatusResponse {
	return SLAStatusResponse{
		Band:             string(status.Band),
		PercentUsed:      status.PercentUsed,
		MinutesRemaining: status.MinutesRemaining,
		DueAt:            dueAt,
	}
}
