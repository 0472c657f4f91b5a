package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-core/internal/domain"
)

// SettingsRepository persists key/value configuration records.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (*domain.Setting, error)
	Upsert(ctx context.Context, setting *domain.Setting) error
	ListByCategory(ctx context.Context, category string) ([]domain.Setting, error)
	ListAll(ctx context.Context) ([]domain.Setting, error)
	ListPublic(ctx context.Context) ([]domain.Setting, error)
}

type settingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository builds repository.
func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (*domain.Setting, error) {
	const query = `SELECT key, category, value, public, updated_at FROM settings WHERE key=$1`
	var setting domain.Setting
	if err := r.pool.QueryRow(ctx, query, key).Scan(
		&setting.Key,
		&setting.Category,
		&setting.Value,
		&setting.Public,
		&setting.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, setting *domain.Setting) error {
	const query = `
        INSERT INTO settings (key, category, value, public, updated_at)
        VALUES ($1,$2,$3,$4,NOW())
        ON CONFLICT (key) DO UPDATE SET category=$2, value=$3, public=$4, updated_at=NOW()
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		setting.Key,
		setting.Category,
		setting.Value,
		setting.Public,
	).Scan(&setting.UpdatedAt)
}

func (r *settingsRepository) ListByCategory(ctx context.Context, category string) ([]domain.Setting, error) {
	const query = `SELECT key, category, value, public, updated_at FROM settings WHERE category=$1 ORDER BY key`
	return r.list(ctx, query, category)
}

func (r *settingsRepository) ListAll(ctx context.Context) ([]domain.Setting, error) {
	const query = `SELECT key, category, value, public, updated_at FROM settings ORDER BY key`
	return r.list(ctx, query)
}

func (r *settingsRepository) ListPublic(ctx context.Context) ([]domain.Setting, error) {
	const query = `SELECT key, category, value, public, updated_at FROM settings WHERE public ORDER BY key`
	return r.list(ctx, query)
}

func (r *settingsRepository) list(ctx context.Context, query string, args ...any) ([]domain.Setting, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSettings(rows)
}

func scanSettings(rows pgx.Rows) ([]domain.Setting, error) {
	var result []domain.Setting
	for rows.Next() {
		var setting domain.Setting
		if err := rows.Scan(
			&setting.Key,
			&setting.Category,
			&setting.Value,
			&setting.Public,
			&setting.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, setting)
	}
	return result, rows.Err()
}
