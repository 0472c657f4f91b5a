package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-core/internal/domain"
)

// In-memory repository implementations backing tests and local development.
// They honor the same contract as the pgx versions: per-record atomic writes
// under a mutex, pgx.ErrNoRows for missing ids, append-only audit events.

// MemoryTicketRepository is a map-backed TicketRepository.
type MemoryTicketRepository struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket
}

// NewMemoryTicketRepository builds an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]domain.Ticket)}
}

func (r *MemoryTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *MemoryTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *MemoryTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := cloneTicket(ticket)
	return &clone, nil
}

func (r *MemoryTicketRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

func (r *MemoryTicketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if !matchesFilter(ticket, filter) {
			continue
		}
		result = append(result, cloneTicket(ticket))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	result = paginate(result, filter.Limit, filter.Offset)
	return result, nil
}

func (r *MemoryTicketRepository) Stats(ctx context.Context) (*TicketStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats TicketStats
	for _, ticket := range r.tickets {
		resolved := ticket.Status == domain.TicketStatusResolved || ticket.Status == domain.TicketStatusClosed
		if ticket.Status == domain.TicketStatusOpen {
			stats.Open++
		}
		if !resolved {
			stats.Unresolved++
			if ticket.Severity == domain.SeverityCritical {
				stats.Critical++
			}
			if ticket.AssignedToID == nil {
				stats.Unassigned++
			}
		}
		if ticket.Status == domain.TicketStatusEscalated {
			stats.Escalated++
		}
	}
	return &stats, nil
}

func matchesFilter(ticket domain.Ticket, filter TicketFilter) bool {
	if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
		return false
	}
	if filter.AssignedToID != nil && (ticket.AssignedToID == nil || *ticket.AssignedToID != *filter.AssignedToID) {
		return false
	}
	if filter.Category != nil && ticket.Category != *filter.Category {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
		return false
	}
	if len(filter.Severities) > 0 && !containsSeverity(filter.Severities, ticket.Severity) {
		return false
	}
	if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && ticket.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term != "" &&
			!strings.Contains(strings.ToLower(ticket.Subject), term) &&
			!strings.Contains(strings.ToLower(ticket.Description), term) {
			return false
		}
	}
	return true
}

func containsStatus(list []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == status {
			return true
		}
	}
	return false
}

func containsSeverity(list []domain.TicketSeverity, severity domain.TicketSeverity) bool {
	for _, candidate := range list {
		if candidate == severity {
			return true
		}
	}
	return false
}

func paginate(tickets []domain.Ticket, limit, offset int) []domain.Ticket {
	if limit <= 0 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(tickets) {
		return nil
	}
	end := offset + limit
	if end > len(tickets) {
		end = len(tickets)
	}
	return tickets[offset:end]
}

func cloneTicket(ticket domain.Ticket) domain.Ticket {
	clone := ticket
	clone.Tags = append([]string(nil), ticket.Tags...)
	clone.AssignedToID = clonePtr(ticket.AssignedToID)
	clone.RelatedUserID = clonePtr(ticket.RelatedUserID)
	clone.RelatedOrderID = clonePtr(ticket.RelatedOrderID)
	clone.SlaDueAt = cloneTimePtr(ticket.SlaDueAt)
	clone.ClosedAt = cloneTimePtr(ticket.ClosedAt)
	return clone
}

func clonePtr(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTimePtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

// MemoryMessageRepository is a map-backed MessageRepository.
type MemoryMessageRepository struct {
	mu       sync.Mutex
	messages map[string][]domain.Message
}

// NewMemoryMessageRepository builds an empty store.
func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{messages: make(map[string][]domain.Message)}
}

func (r *MemoryMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = time.Now()
	r.messages[msg.TicketID] = append(r.messages[msg.TicketID], *msg)
	return nil
}

func (r *MemoryMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message(nil), r.messages[ticketID]...), nil
}

// MemoryAuditEventRepository is a slice-backed AuditEventRepository.
type MemoryAuditEventRepository struct {
	mu     sync.Mutex
	events map[string][]domain.AuditEvent
}

// NewMemoryAuditEventRepository builds an empty store.
func NewMemoryAuditEventRepository() *MemoryAuditEventRepository {
	return &MemoryAuditEventRepository{events: make(map[string][]domain.AuditEvent)}
}

func (r *MemoryAuditEventRepository) Append(ctx context.Context, event *domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	r.events[event.Scope] = append(r.events[event.Scope], *event)
	return nil
}

func (r *MemoryAuditEventRepository) LastByScope(ctx context.Context, scope string) (*domain.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chain := r.events[scope]
	if len(chain) == 0 {
		return nil, nil
	}
	last := chain[len(chain)-1]
	return &last, nil
}

func (r *MemoryAuditEventRepository) ListByScope(ctx context.Context, scope string) ([]domain.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chain := append([]domain.AuditEvent(nil), r.events[scope]...)
	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].OccurredAt.Before(chain[j].OccurredAt)
	})
	return chain, nil
}

// Tamper overwrites a stored event in place. Test hook for chain
// verification; the pgx repository has no equivalent.
func (r *MemoryAuditEventRepository) Tamper(scope string, index int, mutate func(*domain.AuditEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chain := r.events[scope]
	if index < 0 || index >= len(chain) {
		return
	}
	mutate(&chain[index])
}
