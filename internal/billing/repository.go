package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// RepositoryPort abstracts billing persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetHeader(ctx context.Context, id int64) (*InvoiceHeader, error)
	Search(ctx context.Context, filter SearchFilter) ([]InvoiceSummary, error)
	Lines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error)
	Payments(ctx context.Context, invoiceID int64) ([]Payment, error)
	SumPayments(ctx context.Context, invoiceID int64) (float64, error)
	PromoteOverdue(ctx context.Context, asOf time.Time) (int64, error)
	DueOn(ctx context.Context, dates []time.Time) ([]InvoiceSummary, error)
}

// TxRepository exposes the transactional operations used by the service.
// Billing is the only module that mutates item stock, so the stock queries
// live here rather than behind the catalog.
type TxRepository interface {
	LatestInvoiceNumber(ctx context.Context) (string, error)
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	InsertLine(ctx context.Context, line InvoiceLine) (int64, error)
	ItemForUpdate(ctx context.Context, itemID int64) (name string, quantity int64, err error)
	DecrementStock(ctx context.Context, itemID, quantity, actorID int64) error
	InsertMovement(ctx context.Context, itemID, quantity, actorID int64, note string) error
	InvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error)
	SumPayments(ctx context.Context, invoiceID int64) (float64, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	UpdateStatus(ctx context.Context, invoiceID int64, status Status) error
}

// Repository persists billing data in PostgreSQL.
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

const invoiceColumns = `i.id, i.number, i.customer_id, i.invoice_date, i.due_date,
	i.subtotal, i.tax_rate, i.tax_amount, i.discount_rate, i.discount_amount,
	i.total, i.status, i.notes, COALESCE(i.created_by, 0)`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.InvoiceDate, &inv.DueDate,
		&inv.Subtotal, &inv.TaxRate, &inv.TaxAmount, &inv.DiscountRate, &inv.DiscountAmount,
		&inv.Total, &inv.Status, &inv.Notes, &inv.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFound("invoice")
		}
		return nil, shared.StoreError(err)
	}
	return &inv, nil
}

// GetHeader fetches an invoice with its customer block.
func (r *Repository) GetHeader(ctx context.Context, id int64) (*InvoiceHeader, error) {
	var h InvoiceHeader
	err := r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+`, c.name, c.email, c.phone, c.address, c.tax_id
		 FROM invoices i JOIN customers c ON c.id = i.customer_id
		 WHERE i.id = $1`, id).
		Scan(&h.ID, &h.Number, &h.CustomerID, &h.InvoiceDate, &h.DueDate,
			&h.Subtotal, &h.TaxRate, &h.TaxAmount, &h.DiscountRate, &h.DiscountAmount,
			&h.Total, &h.Status, &h.Notes, &h.CreatedBy,
			&h.Customer.Name, &h.Customer.Email, &h.Customer.Phone, &h.Customer.Address, &h.Customer.TaxID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFound("invoice")
		}
		return nil, shared.StoreError(err)
	}
	return &h, nil
}

// Search returns invoice summaries matching the filter, newest first.
func (r *Repository) Search(ctx context.Context, filter SearchFilter) ([]InvoiceSummary, error) {
	var conditions []string
	var args []any

	if filter.Term != "" {
		args = append(args, "%"+filter.Term+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(i.number ILIKE $%d OR c.name ILIKE $%d)", n, n))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("i.invoice_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("i.invoice_date <= $%d", len(args)))
	}
	if filter.CustomerID != 0 {
		args = append(args, filter.CustomerID)
		conditions = append(conditions, fmt.Sprintf("i.customer_id = $%d", len(args)))
	}

	query := `SELECT i.id, i.number, i.customer_id, c.name, i.invoice_date, i.due_date, i.total, i.status
		FROM invoices i JOIN customers c ON c.id = i.customer_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY i.invoice_date DESC, i.id DESC"

	return r.querySummaries(ctx, query, args...)
}

func (r *Repository) querySummaries(ctx context.Context, query string, args ...any) ([]InvoiceSummary, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.StoreError(err)
	}
	defer rows.Close()

	var summaries []InvoiceSummary
	for rows.Next() {
		var s InvoiceSummary
		err := rows.Scan(&s.ID, &s.Number, &s.CustomerID, &s.CustomerName,
			&s.InvoiceDate, &s.DueDate, &s.Total, &s.Status)
		if err != nil {
			return nil, shared.StoreError(err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError(err)
	}
	return summaries, nil
}

// Lines returns the lines of an invoice with their item names, in insertion order.
func (r *Repository) Lines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT l.id, l.invoice_id, l.item_id, it.name, l.description, l.quantity, l.unit_price, l.total
		 FROM invoice_lines l JOIN items it ON it.id = l.item_id
		 WHERE l.invoice_id = $1 ORDER BY l.id`, invoiceID)
	if err != nil {
		return nil, shared.StoreError(err)
	}
	defer rows.Close()

	var lines []InvoiceLine
	for rows.Next() {
		var l InvoiceLine
		err := rows.Scan(&l.ID, &l.InvoiceID, &l.ItemID, &l.ItemName, &l.Description, &l.Quantity, &l.UnitPrice, &l.Total)
		if err != nil {
			return nil, shared.StoreError(err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError(err)
	}
	return lines, nil
}

// Payments returns the payments of an invoice, oldest first.
func (r *Repository) Payments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, invoice_id, paid_at, amount, method, reference, note, COALESCE(recorded_by, 0)
		 FROM payments WHERE invoice_id = $1 ORDER BY paid_at, id`, invoiceID)
	if err != nil {
		return nil, shared.StoreError(err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		err := rows.Scan(&p.ID, &p.InvoiceID, &p.At, &p.Amount, &p.Method, &p.Reference, &p.Note, &p.RecordedBy)
		if err != nil {
			return nil, shared.StoreError(err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError(err)
	}
	return payments, nil
}

// SumPayments totals the payments recorded against an invoice.
func (r *Repository) SumPayments(ctx context.Context, invoiceID int64) (float64, error) {
	var sum float64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1`, invoiceID).Scan(&sum)
	if err != nil {
		return 0, shared.StoreError(err)
	}
	return sum, nil
}

// PromoteOverdue marks Unpaid and Partial invoices past their due date as
// Overdue and returns the number of rows changed.
func (r *Repository) PromoteOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET status = 'Overdue'
		 WHERE status IN ('Unpaid', 'Partial') AND due_date < $1`, asOf)
	if err != nil {
		return 0, shared.StoreError(err)
	}
	return tag.RowsAffected(), nil
}

// DueOn returns open invoices whose due date falls on any of the given days.
func (r *Repository) DueOn(ctx context.Context, dates []time.Time) ([]InvoiceSummary, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	return r.querySummaries(ctx,
		`SELECT i.id, i.number, i.customer_id, c.name, i.invoice_date, i.due_date, i.total, i.status
		 FROM invoices i JOIN customers c ON c.id = i.customer_id
		 WHERE i.status IN ('Unpaid', 'Partial', 'Overdue') AND i.due_date = ANY($1)
		 ORDER BY i.due_date, i.id`, dates)
}

func (t *txRepo) LatestInvoiceNumber(ctx context.Context) (string, error) {
	var number string
	err := t.tx.QueryRow(ctx, `SELECT number FROM invoices ORDER BY id DESC LIMIT 1`).Scan(&number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", shared.StoreError(err)
	}
	return number, nil
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO invoices (number, customer_id, invoice_date, due_date, subtotal,
			tax_rate, tax_amount, discount_rate, discount_amount, total, status, notes, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`,
		inv.Number, inv.CustomerID, inv.InvoiceDate, inv.DueDate, inv.Subtotal,
		inv.TaxRate, inv.TaxAmount, inv.DiscountRate, inv.DiscountAmount,
		inv.Total, inv.Status, inv.Notes, nullableID(inv.CreatedBy)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, shared.Taken("invoice number")
		}
		return 0, shared.StoreError(err)
	}
	return id, nil
}

func (t *txRepo) InsertLine(ctx context.Context, line InvoiceLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO invoice_lines (invoice_id, item_id, description, quantity, unit_price, total)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		line.InvoiceID, line.ItemID, line.Description, line.Quantity, line.UnitPrice, line.Total).Scan(&id)
	if err != nil {
		return 0, shared.StoreError(err)
	}
	return id, nil
}

func (t *txRepo) ItemForUpdate(ctx context.Context, itemID int64) (string, int64, error) {
	var name string
	var quantity int64
	err := t.tx.QueryRow(ctx, `SELECT name, quantity FROM items WHERE id = $1 FOR UPDATE`, itemID).
		Scan(&name, &quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, shared.NotFound("item")
		}
		return "", 0, shared.StoreError(err)
	}
	return name, quantity, nil
}

func (t *txRepo) DecrementStock(ctx context.Context, itemID, quantity, actorID int64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE items SET quantity = quantity - $2, last_updated = NOW(), updated_by = $3
		 WHERE id = $1`, itemID, quantity, nullableID(actorID))
	return shared.StoreError(err)
}

func (t *txRepo) InsertMovement(ctx context.Context, itemID, quantity, actorID int64, note string) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO stock_movements (item_id, direction, quantity, moved_at, actor_id, note)
		 VALUES ($1, 'out', $2, NOW(), $3, $4)`, itemID, quantity, nullableID(actorID), note)
	return shared.StoreError(err)
}

func (t *txRepo) InvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices i WHERE i.id = $1 FOR UPDATE`, id)
	return scanInvoice(row)
}

func (t *txRepo) SumPayments(ctx context.Context, invoiceID int64) (float64, error) {
	var sum float64
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1`, invoiceID).Scan(&sum)
	if err != nil {
		return 0, shared.StoreError(err)
	}
	return sum, nil
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO payments (invoice_id, paid_at, amount, method, reference, note, recorded_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		p.InvoiceID, p.At, p.Amount, p.Method, p.Reference, p.Note, nullableID(p.RecordedBy)).Scan(&id)
	if err != nil {
		return 0, shared.StoreError(err)
	}
	return id, nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, invoiceID int64, status Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE invoices SET status = $2 WHERE id = $1`, invoiceID, status)
	if err != nil {
		return shared.StoreError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("invoice")
	}
	return nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

var _ RepositoryPort = (*Repository)(nil)
