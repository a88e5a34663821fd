package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillbook/tillbook/internal/shared"
)

// RepositoryPort defines persistence operations for operators.
type RepositoryPort interface {
	FindByUsername(ctx context.Context, username string) (*Operator, error)
	FindByID(ctx context.Context, id int64) (*Operator, error)
	List(ctx context.Context) ([]Operator, error)
	Create(ctx context.Context, username, secretHash string, role Role) (int64, error)
	Delete(ctx context.Context, id int64) error
	CountAdmins(ctx context.Context) (int64, error)
	UpdateSecret(ctx context.Context, id int64, secretHash string) error
	UpdateRole(ctx context.Context, id int64, role Role) error
}

// Repository persists operators in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const operatorColumns = `id, username, secret_hash, role, created_at`

func scanOperator(row pgx.Row) (*Operator, error) {
	var op Operator
	if err := row.Scan(&op.ID, &op.Username, &op.SecretHash, &op.Role, &op.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFound("operator")
		}
		return nil, shared.StoreError(err)
	}
	return &op, nil
}

// FindByUsername fetches an operator by unique username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*Operator, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+operatorColumns+` FROM operators WHERE username = $1`, username)
	return scanOperator(row)
}

// FindByID fetches an operator by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Operator, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id)
	return scanOperator(row)
}

// List returns all operators ordered by username.
func (r *Repository) List(ctx context.Context) ([]Operator, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+operatorColumns+` FROM operators ORDER BY username`)
	if err != nil {
		return nil, shared.StoreError(err)
	}
	defer rows.Close()

	var operators []Operator
	for rows.Next() {
		var op Operator
		if err := rows.Scan(&op.ID, &op.Username, &op.SecretHash, &op.Role, &op.CreatedAt); err != nil {
			return nil, shared.StoreError(err)
		}
		operators = append(operators, op)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError(err)
	}
	return operators, nil
}

// Create inserts a new operator, surfacing Taken on username collision.
func (r *Repository) Create(ctx context.Context, username, secretHash string, role Role) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO operators (username, secret_hash, role) VALUES ($1, $2, $3) RETURNING id`,
		username, secretHash, role).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, shared.Taken("username")
		}
		return 0, shared.StoreError(err)
	}
	return id, nil
}

// Delete removes an operator row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM operators WHERE id = $1`, id)
	if err != nil {
		return shared.StoreError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("operator")
	}
	return nil
}

// CountAdmins returns the number of operators holding the admin role.
func (r *Repository) CountAdmins(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM operators WHERE role = 'admin'`).Scan(&count); err != nil {
		return 0, shared.StoreError(err)
	}
	return count, nil
}

// UpdateSecret replaces the stored secret hash.
func (r *Repository) UpdateSecret(ctx context.Context, id int64, secretHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE operators SET secret_hash = $2 WHERE id = $1`, id, secretHash)
	if err != nil {
		return shared.StoreError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("operator")
	}
	return nil
}

// UpdateRole changes an operator's role.
func (r *Repository) UpdateRole(ctx context.Context, id int64, role Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE operators SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return shared.StoreError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("operator")
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
