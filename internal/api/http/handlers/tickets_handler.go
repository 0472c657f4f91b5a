package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-core/internal/api/dto"
	"github.com/spec-kit/support-core/internal/auth"
	"github.com/spec-kit/support-core/internal/domain"
	"github.com/spec-kit/support-core/internal/repository"
	"github.com/spec-kit/support-core/internal/service"
	apperrors "github.com/spec-kit/support-core/pkg/util"
)

// TicketsHandler manages operator ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		Subject:        req.Subject,
		Description:    req.Description,
		Severity:       req.Severity,
		Category:       req.Category,
		RequesterID:    req.RequesterID,
		RelatedUserID:  req.RelatedUserID,
		RelatedOrderID: req.RelatedOrderID,
		Tags:           req.Tags,
	}
	ticket, err := h.service.Create(c.UserContext(), input, principal.Operator.ID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter := parseTicketQuery(c)
	tickets, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, messages, slaStatus, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	detail := dto.TicketDetailResponse{
		TicketSummary:  ticketSummary(ticket),
		Description:    ticket.Description,
		RelatedUserID:  ticket.RelatedUserID,
		RelatedOrderID: ticket.RelatedOrderID,
		ClosedAt:       ticket.ClosedAt,
		SLA:            dto.SLAStatus(slaStatus, ticket.SlaDueAt),
		Messages:       messageResponses(messages),
	}
	return c.JSON(fiber.Map{"data": detail})
}

// UpdateTicket PATCH /tickets/:id. Fields are applied independently; each
// changed field lands as its own chain event.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == nil && req.Severity == nil && req.Category == nil && req.AssignedToID == nil && req.Tags == nil {
		return apperrors.NewValidationError("no fields to update", nil)
	}

	ticketID := c.Params("id")
	actorID := principal.Operator.ID
	var (
		ticket *domain.Ticket
		err    error
	)
	if req.Status != nil {
		if ticket, err = h.service.UpdateStatus(c.UserContext(), ticketID, *req.Status, actorID, req.Reason); err != nil {
			return err
		}
	}
	if req.Severity != nil {
		if ticket, err = h.service.UpdateSeverity(c.UserContext(), ticketID, *req.Severity, actorID); err != nil {
			return err
		}
	}
	if req.AssignedToID != nil {
		if ticket, err = h.service.Assign(c.UserContext(), ticketID, *req.AssignedToID, actorID); err != nil {
			return err
		}
	}
	if req.Category != nil {
		if ticket, err = h.service.UpdateCategory(c.UserContext(), ticketID, *req.Category, actorID); err != nil {
			return err
		}
	}
	if req.Tags != nil {
		if ticket, err = h.service.UpdateTags(c.UserContext(), ticketID, *req.Tags, actorID); err != nil {
			return err
		}
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}
	if err := h.service.Delete(c.UserContext(), c.Params("id"), principal.Operator.ID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AssignTicket POST /tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.AssigneeID) == "" {
		return apperrors.NewValidationError("assignee_id required", nil)
	}
	ticket, err := h.service.Assign(c.UserContext(), c.Params("id"), req.AssigneeID, principal.Operator.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.service.AddMessage(c.UserContext(), c.Params("id"), service.MessageInput{
		SenderID:    principal.Operator.ID,
		SenderRole:  domain.SenderRoleOperator,
		Body:        req.Body,
		Internal:    req.Internal,
		Attachments: req.Attachments,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

// CloseTicket POST /tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.CloseTicketRequest
	_ = c.BodyParser(&req)
	ticket, err := h.service.Close(c.UserContext(), c.Params("id"), principal.Operator.ID, req.Resolution)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ReopenTicket POST /tickets/:id/reopen.
func (h *TicketsHandler) ReopenTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.ReopenTicketRequest
	_ = c.BodyParser(&req)
	ticket, err := h.service.Reopen(c.UserContext(), c.Params("id"), principal.Operator.ID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// EscalateTicket POST /tickets/:id/escalate.
func (h *TicketsHandler) EscalateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.EscalateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Escalate(c.UserContext(), c.Params("id"), principal.Operator.ID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// AuditTrail GET /tickets/:id/audit. Returns the chain in order plus a
// verification verdict; a corrupted chain is still returned so operators can
// inspect it.
func (h *TicketsHandler) AuditTrail(c *fiber.Ctx) error {
	trail, err := h.service.AuditTrail(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	verdict := "intact"
	if verifyErr := h.service.VerifyAudit(c.UserContext(), c.Params("id")); verifyErr != nil {
		verdict = verifyErr.Error()
	}
	items := make([]dto.AuditEventResponse, 0, len(trail))
	for i := range trail {
		items = append(items, auditEventResponse(&trail[i]))
	}
	return c.JSON(fiber.Map{"data": items, "chain": verdict})
}

// Stats GET /tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketStatsResponse{
		Open:       stats.Open,
		Unresolved: stats.Unresolved,
		Escalated:  stats.Escalated,
		Critical:   stats.Critical,
		Unassigned: stats.Unassigned,
	}})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if severityStr := c.Query("severity"); severityStr != "" {
		for _, part := range strings.Split(severityStr, ",") {
			filter.Severities = append(filter.Severities, domain.TicketSeverity(strings.TrimSpace(part)))
		}
	}
	if category := c.Query("category"); category != "" {
		cat := domain.TicketCategory(category)
		filter.Category = &cat
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		filter.AssignedToID = &assignee
	}
	if requester := c.Query("requester"); requester != "" {
		filter.RequesterID = &requester
	}
	if search := c.Query("q"); search != "" {
		filter.SearchTerm = &search
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:           ticket.ID,
		ExternalKey:  ticket.ExternalKey,
		Subject:      ticket.Subject,
		Status:       ticket.Status,
		Severity:     ticket.Severity,
		Category:     ticket.Category,
		RequesterID:  ticket.RequesterID,
		AssignedToID: ticket.AssignedToID,
		Tags:         ticket.Tags,
		SlaDueAt:     ticket.SlaDueAt,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
}

func messageResponses(messages []domain.Message) []dto.TicketMessageResponse {
	out := make([]dto.TicketMessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, messageResponse(&messages[i]))
	}
	return out
}

func messageResponse(msg *domain.Message) dto.TicketMessageResponse {
	return dto.TicketMessageResponse{
		ID:          msg.ID,
		SenderID:    msg.SenderID,
		SenderRole:  msg.SenderRole,
		Body:        msg.Body,
		Internal:    msg.Internal,
		Attachments: msg.Attachments,
		CreatedAt:   msg.CreatedAt,
	}
}

func auditEventResponse(event *domain.AuditEvent) dto.AuditEventResponse {
	return dto.AuditEventResponse{
		ID:         event.ID,
		Action:     event.Action,
		ActorID:    event.ActorID,
		DiffBefore: event.DiffBefore,
		DiffAfter:  event.DiffAfter,
		Severity:   event.Severity,
		OccurredAt: event.OccurredAt,
		PrevHash:   event.PrevHash,
		SelfHash:   event.SelfHash,
	}
}
