package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-core/internal/audit"
	"github.com/spec-kit/support-core/internal/config"
	"github.com/spec-kit/support-core/internal/domain"
	"github.com/spec-kit/support-core/internal/events"
	"github.com/spec-kit/support-core/internal/repository"
	"github.com/spec-kit/support-core/internal/sla"
	"github.com/spec-kit/support-core/internal/triage"
	apperrors "github.com/spec-kit/support-core/pkg/util"
)

// allowedTransitions is the full status graph. CLOSED is terminal except for
// the explicit reopen edge back to OPEN.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:           {domain.TicketStatusPending, domain.TicketStatusEscalated, domain.TicketStatusClosed},
	domain.TicketStatusPending:        {domain.TicketStatusAwaitingVendor, domain.TicketStatusResolved, domain.TicketStatusEscalated},
	domain.TicketStatusAwaitingVendor: {domain.TicketStatusPending, domain.TicketStatusEscalated},
	domain.TicketStatusResolved:       {domain.TicketStatusClosed, domain.TicketStatusEscalated},
	domain.TicketStatusEscalated:      {domain.TicketStatusOpen, domain.TicketStatusPending, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusClosed:         {domain.TicketStatusOpen},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TicketService is the state machine orchestrating the ticket store, the SLA
// clock, the audit chain writer, and event fan-out.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	auditor    *audit.ChainWriter
	dispatcher events.Dispatcher
	triage     triage.Dispatcher
	policy     config.SLAPolicy
	logger     *zap.Logger
	clock      func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	Auditor     *audit.ChainWriter
	Dispatcher  events.Dispatcher
	Triage      triage.Dispatcher
	Policy      config.SLAPolicy
	Logger      *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	svc := &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		auditor:    deps.Auditor,
		dispatcher: deps.Dispatcher,
		triage:     deps.Triage,
		policy:     deps.Policy,
		logger:     deps.Logger,
		clock:      time.Now,
	}
	if svc.triage == nil {
		svc.triage = triage.NewNoopDispatcher()
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// WithClock overrides the time source. Test hook.
func (s *TicketService) WithClock(clock func() time.Time) *TicketService {
	s.clock = clock
	return s
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject        string
	Description    string
	Severity       domain.TicketSeverity
	Category       domain.TicketCategory
	RequesterID    string
	RelatedUserID  *string
	RelatedOrderID *string
	Tags           []string
}

// Create opens a ticket with its SLA deadline fixed from severity, records
// the CREATED chain event, emits the fan-out event, and hands the ticket to
// triage without waiting on it.
func (s *TicketService) Create(ctx context.Context, input TicketCreateInput, actorID string) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)
	if subject == "" || description == "" {
		return nil, apperrors.NewValidationError("subject and description required", nil)
	}
	if input.RequesterID == "" {
		return nil, apperrors.NewValidationError("requester_id required", nil)
	}

	now := s.clock()
	deadline := sla.ComputeDeadline(input.Severity, now)

	ticket := &domain.Ticket{
		ExternalKey:    generateTicketKey(),
		Subject:        subject,
		Description:    description,
		Severity:       input.Severity,
		Category:       input.Category,
		Status:         domain.TicketStatusOpen,
		RequesterID:    input.RequesterID,
		RelatedUserID:  input.RelatedUserID,
		RelatedOrderID: input.RelatedOrderID,
		Tags:           input.Tags,
		SlaDueAt:       &deadline,
	}
	if ticket.Severity == "" {
		ticket.Severity = domain.SeverityNormal
	}
	if ticket.Category == "" {
		ticket.Category = domain.CategoryOther
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.appendAudit(ctx, ticket, domain.AuditActionCreated, actorID, nil, map[string]any{
		"status":     string(ticket.Status),
		"subject":    ticket.Subject,
		"severity":   string(ticket.Severity),
		"category":   string(ticket.Category),
		"sla_due_at": deadline.UTC().Format(time.RFC3339),
	}); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketCreatedPayload{
			Subject:  ticket.Subject,
			Severity: ticket.Severity,
			Category: ticket.Category,
			SlaDueAt: ticket.SlaDueAt,
		},
	})
	s.dispatchTriage(ticket)

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("severity", string(ticket.Severity)),
		zap.String("category", string(ticket.Category)))
	return ticket, nil
}

// Assign overwrites the assignee. Idempotent: re-assigning the same operator
// succeeds and is recorded again.
func (s *TicketService) Assign(ctx context.Context, ticketID, assigneeID, actorID string) (*domain.Ticket, error) {
	if assigneeID == "" {
		return nil, apperrors.NewValidationError("assignee_id required", nil)
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	before := map[string]any{"assigned_to_id": strOrNil(ticket.AssignedToID)}
	ticket.AssignedToID = &assigneeID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.appendAudit(ctx, ticket, domain.AuditActionAssigned, actorID, before, map[string]any{
		"assigned_to_id": assigneeID,
	}); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload:  events.TicketAssignedPayload{AssignedToID: assigneeID},
	})
	return ticket, nil
}

// MessageInput describes a new thread entry.
type MessageInput struct {
	SenderID    string
	SenderRole  domain.SenderRole
	Body        string
	Internal    bool
	Attachments []domain.AttachmentReference
}

// AddMessage appends to the ticket thread. Status is untouched; updatedAt
// moves. The internal flag is persisted verbatim, requester-facing filtering
// belongs to consumers.
func (s *TicketService) AddMessage(ctx context.Context, ticketID string, input MessageInput) (*domain.Message, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, apperrors.NewValidationError("body required", nil)
	}
	if input.SenderID == "" {
		return nil, apperrors.NewValidationError("sender_id required", nil)
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		TicketID:    ticket.ID,
		SenderID:    input.SenderID,
		SenderRole:  input.SenderRole,
		Body:        strings.TrimSpace(input.Body),
		Internal:    input.Internal,
		Attachments: input.Attachments,
	}
	if msg.SenderRole == "" {
		msg.SenderRole = domain.SenderRoleOperator
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.appendAudit(ctx, ticket, domain.AuditActionMessageAdded, input.SenderID, nil, map[string]any{
		"message_id": msg.ID,
		"internal":   msg.Internal,
	}); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessage,
		TicketID: ticket.ID,
		ActorID:  input.SenderID,
		Payload: events.TicketMessagePayload{
			MessageID:  msg.ID,
			SenderRole: msg.SenderRole,
			Internal:   msg.Internal,
		},
	})
	return msg, nil
}

// UpdateStatus applies a generic transition from the table.
func (s *TicketService) UpdateStatus(ctx context.Context, ticketID string, newStatus domain.TicketStatus, actorID, reason string) (*domain.Ticket, error) {
	return s.transition(ctx, ticketID, newStatus, actorID, domain.AuditActionStatusChanged, events.EventTicketUpdated, reason, nil)
}

// Escalate moves the ticket to ESCALATED under a dedicated audit action so
// escalations stay independently queryable.
func (s *TicketService) Escalate(ctx context.Context, ticketID, actorID, reason string) (*domain.Ticket, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.NewValidationError("reason required", nil)
	}
	ticket, err := s.transition(ctx, ticketID, domain.TicketStatusEscalated, actorID, domain.AuditActionEscalated, events.EventTicketEscalated, reason, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Warn("ticket escalated", zap.String("ticket_id", ticketID), zap.String("reason", reason))
	return ticket, nil
}

// Close moves the ticket to CLOSED, recording the resolution in the diff.
func (s *TicketService) Close(ctx context.Context, ticketID, actorID, resolution string) (*domain.Ticket, error) {
	extra := map[string]any{}
	if resolution != "" {
		extra["resolution"] = resolution
	}
	return s.transition(ctx, ticketID, domain.TicketStatusClosed, actorID, domain.AuditActionClosed, events.EventTicketClosed, resolution, extra)
}

// Reopen is the explicit CLOSED -> OPEN edge. Whether the SLA deadline is
// recomputed from now is a policy decision, not an accident of code path.
func (s *TicketService) Reopen(ctx context.Context, ticketID, actorID, reason string) (*domain.Ticket, error) {
	return s.transition(ctx, ticketID, domain.TicketStatusOpen, actorID, domain.AuditActionReopened, events.EventTicketUpdated, reason, nil)
}

// UpdateSeverity changes severity. The deadline moves only when the
// severity-reactive policy is enabled; it stays anchored to creation time.
func (s *TicketService) UpdateSeverity(ctx context.Context, ticketID string, newSeverity domain.TicketSeverity, actorID string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	before := map[string]any{"severity": string(ticket.Severity)}
	after := map[string]any{"severity": string(newSeverity)}
	oldSeverity := ticket.Severity
	ticket.Severity = newSeverity
	if s.policy.SeverityReactive {
		deadline := sla.ComputeDeadline(newSeverity, ticket.CreatedAt)
		ticket.SlaDueAt = &deadline
		after["sla_due_at"] = deadline.UTC().Format(time.RFC3339)
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.appendAudit(ctx, ticket, domain.AuditActionSeverityChanged, actorID, before, after); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketFieldChangedPayload{
			Field:    "severity",
			OldValue: oldSeverity,
			NewValue: newSeverity,
		},
	})
	return ticket, nil
}

// UpdateCategory changes the routing category.
func (s *TicketService) UpdateCategory(ctx context.Context, ticketID string, newCategory domain.TicketCategory, actorID string) (*domain.Ticket, error) {
	return s.updateField(ctx, ticketID, actorID, "category", domain.AuditActionCategoryChanged,
		func(ticket *domain.Ticket) (any, any) {
			old := ticket.Category
			ticket.Category = newCategory
			return old, newCategory
		})
}

// UpdateTags replaces the tag set.
func (s *TicketService) UpdateTags(ctx context.Context, ticketID string, tags []string, actorID string) (*domain.Ticket, error) {
	return s.updateField(ctx, ticketID, actorID, "tags", domain.AuditActionTagsChanged,
		func(ticket *domain.Ticket) (any, any) {
			old := ticket.Tags
			ticket.Tags = tags
			return old, tags
		})
}

// Delete removes a ticket. The chain gets a terminal DELETED event first, so
// the authoritative mutation history covers the removal itself; the scope's
// chain outlives the record.
func (s *TicketService) Delete(ctx context.Context, ticketID, actorID string) error {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := s.appendAudit(ctx, ticket, domain.AuditActionDeleted, actorID, map[string]any{
		"status":  string(ticket.Status),
		"subject": ticket.Subject,
	}, nil); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload:  events.TicketDeletedPayload{Subject: ticket.Subject},
	})
	s.logger.Info("ticket deleted", zap.String("ticket_id", ticketID))
	return nil
}

// Get returns the ticket, its thread, and live SLA classification.
func (s *TicketService) Get(ctx context.Context, ticketID string) (*domain.Ticket, []domain.Message, sla.Status, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, sla.Status{}, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, sla.Status{}, apperrors.MapError(err)
	}
	return ticket, msgs, sla.Classify(ticket.Severity, ticket.SlaDueAt, s.clock()), nil
}

// List returns tickets matching the console filter.
func (s *TicketService) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Stats returns dashboard counters.
func (s *TicketService) Stats(ctx context.Context) (*repository.TicketStats, error) {
	stats, err := s.tickets.Stats(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return stats, nil
}

// AuditTrail returns the ordered chain for a ticket.
func (s *TicketService) AuditTrail(ctx context.Context, ticketID string) ([]domain.AuditEvent, error) {
	trail, err := s.auditor.List(ctx, domain.TicketScope(ticketID))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return trail, nil
}

// VerifyAudit replays the ticket's chain. A nil result means the chain is
// intact; integrity failures are reported, never repaired.
func (s *TicketService) VerifyAudit(ctx context.Context, ticketID string) error {
	return s.auditor.Verify(ctx, domain.TicketScope(ticketID))
}

func (s *TicketService) transition(ctx context.Context, ticketID string, newStatus domain.TicketStatus, actorID string, action domain.AuditAction, eventType events.EventType, reason string, extraDiff map[string]any) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !isValidTransition(ticket.Status, newStatus) {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(newStatus))
	}

	oldStatus := ticket.Status
	ticket.Status = newStatus
	switch newStatus {
	case domain.TicketStatusClosed:
		now := s.clock()
		ticket.ClosedAt = &now
	default:
		ticket.ClosedAt = nil
	}

	// Reopen semantics belong to the CLOSED -> OPEN edge itself, whichever
	// entry point took it: the chain records REOPENED and the reopen SLA
	// policy applies even when the caller asked for a generic status change.
	if oldStatus == domain.TicketStatusClosed && newStatus == domain.TicketStatusOpen {
		action = domain.AuditActionReopened
		if s.policy.RecomputeSLAOnReopen {
			deadline := sla.ComputeDeadline(ticket.Severity, s.clock())
			ticket.SlaDueAt = &deadline
		}
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	before := map[string]any{"status": string(oldStatus)}
	after := map[string]any{"status": string(newStatus)}
	if reason != "" {
		after["reason"] = reason
	}
	for key, value := range extraDiff {
		after[key] = value
	}
	if err := s.appendAudit(ctx, ticket, action, actorID, before, after); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     eventType,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Reason:    reason,
		},
	})
	return ticket, nil
}

func (s *TicketService) updateField(ctx context.Context, ticketID, actorID, field string, action domain.AuditAction, mutate func(*domain.Ticket) (any, any)) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	oldValue, newValue := mutate(ticket)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.appendAudit(ctx, ticket, action, actorID,
		map[string]any{field: oldValue},
		map[string]any{field: newValue}); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketFieldChangedPayload{
			Field:    field,
			OldValue: oldValue,
			NewValue: newValue,
		},
	})
	return ticket, nil
}

func (s *TicketService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if ticketID == "" {
		return nil, apperrors.NewValidationError("ticket id required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if apperrors.IsNotFound(apperrors.MapError(err)) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// appendAudit writes the chain event for an already-committed store
// mutation. A failure here leaves the store and the chain inconsistent,
// which is surfaced as an integrity error rather than a generic failure.
func (s *TicketService) appendAudit(ctx context.Context, ticket *domain.Ticket, action domain.AuditAction, actorID string, before, after map[string]any) error {
	_, err := s.auditor.Append(ctx, audit.Entry{
		Scope:      domain.TicketScope(ticket.ID),
		Action:     action,
		ActorID:    actorID,
		DiffBefore: before,
		DiffAfter:  after,
		Severity:   ticket.Severity,
	})
	if err != nil {
		s.logger.Error("audit append failed after store write",
			zap.String("ticket_id", ticket.ID),
			zap.String("action", string(action)),
			zap.Error(err))
		return apperrors.NewIntegrityError("ticket mutated but audit append failed", err)
	}
	return nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// dispatchTriage hands the ticket to the classification queue on a detached
// goroutine. The mutation has already committed; enqueue failures are logged
// and swallowed.
func (s *TicketService) dispatchTriage(ticket *domain.Ticket) {
	job := triage.Job{
		TicketID:    ticket.ID,
		Subject:     ticket.Subject,
		Description: ticket.Description,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.triage.Enqueue(ctx, job); err != nil {
			s.logger.Warn("triage dispatch failed",
				zap.String("ticket_id", job.TicketID),
				zap.Error(err))
		}
	}()
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func strOrNil(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
