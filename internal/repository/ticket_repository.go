package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-core/internal/domain"
)

// TicketFilter captures console search parameters.
type TicketFilter struct {
	Statuses     []domain.TicketStatus
	Severities   []domain.TicketSeverity
	Category     *domain.TicketCategory
	AssignedToID *string
	RequesterID  *string
	SearchTerm   *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// TicketStats aggregates dashboard counters.
type TicketStats struct {
	Open       int64
	Unresolved int64
	Escalated  int64
	Critical   int64
	Unassigned int64
}

// TicketRepository encapsulates ticket persistence. Single-record writes are
// atomic; Update and Delete report pgx.ErrNoRows for missing ids.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Delete(ctx context.Context, id string) error
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Stats(ctx context.Context) (*TicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, subject, description, severity, category, status,
               requester_id, assigned_to_id, related_user_id, related_order_id, tags,
               sla_due_at, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, subject, description, severity, category, status,
            requester_id, assigned_to_id, related_user_id, related_order_id, tags, sla_due_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.Subject,
		ticket.Description,
		ticket.Severity,
		ticket.Category,
		ticket.Status,
		ticket.RequesterID,
		ticket.AssignedToID,
		ticket.RelatedUserID,
		ticket.RelatedOrderID,
		ticket.Tags,
		ticket.SlaDueAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET subject=$1, description=$2, severity=$3, category=$4, status=$5,
            assigned_to_id=$6, related_user_id=$7, related_order_id=$8, tags=$9,
            sla_due_at=$10, closed_at=$11, updated_at=NOW()
        WHERE id=$12
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Severity,
		ticket.Category,
		ticket.Status,
		ticket.AssignedToID,
		ticket.RelatedUserID,
		ticket.RelatedOrderID,
		ticket.Tags,
		ticket.SlaDueAt,
		ticket.ClosedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Severity,
		&ticket.Category,
		&ticket.Status,
		&ticket.RequesterID,
		&ticket.AssignedToID,
		&ticket.RelatedUserID,
		&ticket.RelatedOrderID,
		&ticket.Tags,
		&ticket.SlaDueAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.AssignedToID != nil {
		args = append(args, *filter.AssignedToID)
		clauses = append(clauses, fmt.Sprintf("assigned_to_id=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Severities) > 0 {
		placeholders := make([]string, len(filter.Severities))
		for i, severity := range filter.Severities {
			args = append(args, severity)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("severity IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(subject) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 25
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Stats(ctx context.Context) (*TicketStats, error) {
	const query = `
        SELECT
            COUNT(*) FILTER (WHERE status = 'OPEN'),
            COUNT(*) FILTER (WHERE status NOT IN ('RESOLVED', 'CLOSED')),
            COUNT(*) FILTER (WHERE status = 'ESCALATED'),
            COUNT(*) FILTER (WHERE severity = 'CRITICAL' AND status NOT IN ('RESOLVED', 'CLOSED')),
            COUNT(*) FILTER (WHERE assigned_to_id IS NULL AND status NOT IN ('RESOLVED', 'CLOSED'))
        FROM tickets`
	var stats TicketStats
	if err := r.pool.QueryRow(ctx, query).Scan(
		&stats.Open,
		&stats.Unresolved,
		&stats.Escalated,
		&stats.Critical,
		&stats.Unassigned,
	); err != nil {
		return nil, err
	}
	return &stats, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.ExternalKey,
			&ticket.Subject,
			&ticket.Description,
			&ticket.Severity,
			&ticket.Category,
			&ticket.Status,
			&ticket.RequesterID,
			&ticket.AssignedToID,
			&ticket.RelatedUserID,
			&ticket.RelatedOrderID,
			&ticket.Tags,
			&ticket.SlaDueAt,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
