package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-core/internal/domain"
)

// AuditEventRepository stores hash-chained audit records. Append is the only
// write; events are never updated or deleted.
type AuditEventRepository interface {
	Append(ctx context.Context, event *domain.AuditEvent) error
	LastByScope(ctx context.Context, scope string) (*domain.AuditEvent, error)
	ListByScope(ctx context.Context, scope string) ([]domain.AuditEvent, error)
}

type auditEventRepository struct {
	pool *pgxpool.Pool
}

// NewAuditEventRepository builds repository.
func NewAuditEventRepository(pool *pgxpool.Pool) AuditEventRepository {
	return &auditEventRepository{pool: pool}
}

func (r *auditEventRepository) Append(ctx context.Context, event *domain.AuditEvent) error {
	const query = `
        INSERT INTO audit_events (scope, action, actor_id, diff_before, diff_after, severity, occurred_at, prev_hash, self_hash)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		event.Scope,
		event.Action,
		event.ActorID,
		event.DiffBefore,
		event.DiffAfter,
		event.Severity,
		event.OccurredAt,
		event.PrevHash,
		event.SelfHash,
	).Scan(&event.ID)
}

func (r *auditEventRepository) LastByScope(ctx context.Context, scope string) (*domain.AuditEvent, error) {
	const query = auditSelect + ` WHERE scope=$1 ORDER BY occurred_at DESC, id DESC LIMIT 1`
	row := r.pool.QueryRow(ctx, query, scope)
	event, err := scanAuditEvent(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (r *auditEventRepository) ListByScope(ctx context.Context, scope string) ([]domain.AuditEvent, error) {
	const query = auditSelect + ` WHERE scope=$1 ORDER BY occurred_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEvent
	for rows.Next() {
		event, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *event)
	}
	return result, rows.Err()
}

const auditSelect = `
        SELECT id, scope, action, actor_id, diff_before, diff_after, severity, occurred_at, prev_hash, self_hash
        FROM audit_events`

func scanAuditEvent(row pgx.Row) (*domain.AuditEvent, error) {
	var event domain.AuditEvent
	if err := row.Scan(
		&event.ID,
		&event.Scope,
		&event.Action,
		&event.ActorID,
		&event.DiffBefore,
		&event.DiffAfter,
		&event.Severity,
		&event.OccurredAt,
		&event.PrevHash,
		&event.SelfHash,
	); err != nil {
		return nil, err
	}
	return &event, nil
}
