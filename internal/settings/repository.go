package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillbook/tillbook/internal/shared"
)

// RepositoryPort defines persistence for settings.
type RepositoryPort interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// Repository stores settings in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the stored value, or a NotFound tagged error when unset.
func (r *Repository) Get(ctx context.Context, name string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE name = $1`, name).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.NotFound("setting " + name)
		}
		return "", shared.StoreError(err)
	}
	return value, nil
}

// Set writes a value with upsert semantics.
func (r *Repository) Set(ctx context.Context, name, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO settings (name, value) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`, name, value)
	return shared.StoreError(err)
}

// All returns every stored setting.
func (r *Repository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, value FROM settings ORDER BY name`)
	if err != nil {
		return nil, shared.StoreError(err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, shared.StoreError(err)
		}
		values[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError(err)
	}
	return values, nil
}

var _ RepositoryPort = (*Repository)(nil)
