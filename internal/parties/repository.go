package parties

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// RepositoryPort abstracts customer persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Customer, error)
	List(ctx context.Context, filter Filter) ([]Customer, error)
	Create(ctx context.Context, input CustomerInput, createdBy int64) (int64, error)
	Update(ctx context.Context, id int64, input CustomerInput) error
}

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	CountInvoiceRefs(ctx context.Context, customerID int64) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// Repository persists customers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const customerColumns = `id, name, email, phone, address, tax_id, created_at, COALESCE(created_by, 0)`

// Get fetches a single customer.
func (r *Repository) Get(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.TaxID, &c.CreatedAt, &c.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFound("customer")
		}
		return nil, shared.StoreError(err)
	}
	return &c, nil
}

// List returns customers matching the filter, ordered by name.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers`
	var args []any
	if filter.Search != "" {
		query += ` WHERE name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1`
		args = append(args, "%"+filter.Search+"%")
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.StoreError(err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.TaxID, &c.CreatedAt, &c.CreatedBy); err != nil {
			return nil, shared.StoreError(err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError(err)
	}
	return customers, nil
}

// Create inserts a customer and returns its id.
func (r *Repository) Create(ctx context.Context, input CustomerInput, createdBy int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO customers (name, email, phone, address, tax_id, created_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, NOW(), $6) RETURNING id`,
		input.Name, input.Email, input.Phone, input.Address, input.TaxID, nullableID(createdBy)).Scan(&id)
	if err != nil {
		return 0, shared.StoreError(err)
	}
	return id, nil
}

// Update stores the writable fields of a customer.
func (r *Repository) Update(ctx context.Context, id int64, input CustomerInput) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE customers SET name = $2, email = $3, phone = $4, address = $5, tax_id = $6 WHERE id = $1`,
		id, input.Name, input.Email, input.Phone, input.Address, input.TaxID)
	if err != nil {
		return shared.StoreError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("customer")
	}
	return nil
}

// Delete removes a customer.
func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return shared.StoreError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("customer")
	}
	return nil
}

// CountInvoiceRefs counts invoices referencing a customer.
func (t *txRepo) CountInvoiceRefs(ctx context.Context, customerID int64) (int64, error) {
	var count int64
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE customer_id = $1`, customerID).Scan(&count)
	if err != nil {
		return 0, shared.StoreError(err)
	}
	return count, nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

var _ RepositoryPort = (*Repository)(nil)
