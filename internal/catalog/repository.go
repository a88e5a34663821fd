package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// RepositoryPort abstracts catalog persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, id int64) (*Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, error)
	Categories(ctx context.Context) ([]string, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
}

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, id int64) (*Item, error)
	CountInvoiceLineRefs(ctx context.Context, itemID int64) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	UpdateItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, id int64) error
	DeleteMovementsForItem(ctx context.Context, itemID int64) error
	InsertMovement(ctx context.Context, movement StockMovement) (int64, error)
}

// Repository persists catalog data in PostgreSQL.
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

const itemColumns = `id, name, description, category, quantity, unit_price, supplier, last_updated, COALESCE(updated_by, 0)`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.Category, &it.Quantity,
		&it.UnitPrice, &it.Supplier, &it.LastUpdated, &it.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFound("item")
		}
		return nil, shared.StoreError(err)
	}
	return &it, nil
}

// GetItem fetches a single item.
func (r *Repository) GetItem(ctx context.Context, id int64) (*Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	return scanItem(row)
}

// ListItems returns items matching the filter, ordered by name.
func (r *Repository) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	var conditions []string
	var args []any

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conditions = append(conditions,
			fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR supplier ILIKE $%d)", n, n, n))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.StoreError(err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Category, &it.Quantity,
			&it.UnitPrice, &it.Supplier, &it.LastUpdated, &it.UpdatedBy)
		if err != nil {
			return nil, shared.StoreError(err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError(err)
	}
	return items, nil
}

// Categories returns the distinct item categories.
func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT category FROM items ORDER BY category`)
	if err != nil {
		return nil, shared.StoreError(err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, shared.StoreError(err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError(err)
	}
	return categories, nil
}

// ListMovements returns movements matching the filter, most recent first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	var conditions []string
	var args []any

	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("m.moved_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		// To is a calendar day; cover it through end of day.
		args = append(args, filter.To.AddDate(0, 0, 1))
		conditions = append(conditions, fmt.Sprintf("m.moved_at < $%d", len(args)))
	}
	if filter.Direction != "" {
		args = append(args, filter.Direction)
		conditions = append(conditions, fmt.Sprintf("m.direction = $%d", len(args)))
	}
	if filter.ItemID != 0 {
		args = append(args, filter.ItemID)
		conditions = append(conditions, fmt.Sprintf("m.item_id = $%d", len(args)))
	}

	query := `SELECT m.id, m.item_id, i.name, m.direction, m.quantity, m.moved_at, COALESCE(m.actor_id, 0), m.note
		FROM stock_movements m
		JOIN items i ON i.id = m.item_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY m.moved_at DESC, m.id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.StoreError(err)
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		err := rows.Scan(&m.ID, &m.ItemID, &m.ItemName, &m.Direction, &m.Quantity, &m.MovedAt, &m.ActorID, &m.Note)
		if err != nil {
			return nil, shared.StoreError(err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError(err)
	}
	return movements, nil
}

// CountInvoiceLineRefs counts invoice lines referencing an item.
func (t *txRepo) CountInvoiceLineRefs(ctx context.Context, itemID int64) (int64, error) {
	var count int64
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM invoice_lines WHERE item_id = $1`, itemID).Scan(&count)
	if err != nil {
		return 0, shared.StoreError(err)
	}
	return count, nil
}

func (t *txRepo) GetItemForUpdate(ctx context.Context, id int64) (*Item, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id)
	return scanItem(row)
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO items (name, description, category, quantity, unit_price, supplier, last_updated, updated_by)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7) RETURNING id`,
		item.Name, item.Description, item.Category, item.Quantity, item.UnitPrice, item.Supplier, nullableID(item.UpdatedBy)).Scan(&id)
	if err != nil {
		return 0, shared.StoreError(err)
	}
	return id, nil
}

func (t *txRepo) UpdateItem(ctx context.Context, item Item) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE items SET name = $2, description = $3, category = $4, quantity = $5,
			unit_price = $6, supplier = $7, last_updated = NOW(), updated_by = $8
		 WHERE id = $1`,
		item.ID, item.Name, item.Description, item.Category, item.Quantity,
		item.UnitPrice, item.Supplier, nullableID(item.UpdatedBy))
	if err != nil {
		return shared.StoreError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("item")
	}
	return nil
}

func (t *txRepo) DeleteItem(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return shared.StoreError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("item")
	}
	return nil
}

func (t *txRepo) DeleteMovementsForItem(ctx context.Context, itemID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM stock_movements WHERE item_id = $1`, itemID)
	return shared.StoreError(err)
}

func (t *txRepo) InsertMovement(ctx context.Context, m StockMovement) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO stock_movements (item_id, direction, quantity, moved_at, actor_id, note)
		 VALUES ($1, $2, $3, COALESCE($4, NOW()), $5, $6) RETURNING id`,
		m.ItemID, m.Direction, m.Quantity, nullableTime(m.MovedAt), nullableID(m.ActorID), m.Note).Scan(&id)
	if err != nil {
		return 0, shared.StoreError(err)
	}
	return id, nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

var _ RepositoryPort = (*Repository)(nil)
