package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/tillbook/tillbook/internal/settings"
)

// Schema statements are idempotent; EnsureSchema runs on first use.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS operators (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		secret_hash TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('admin', 'user')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		quantity BIGINT NOT NULL DEFAULT 0,
		unit_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		supplier TEXT NOT NULL DEFAULT '',
		last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_by BIGINT REFERENCES operators(id)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		id BIGSERIAL PRIMARY KEY,
		item_id BIGINT NOT NULL REFERENCES items(id),
		direction TEXT NOT NULL CHECK (direction IN ('in', 'out')),
		quantity BIGINT NOT NULL CHECK (quantity > 0),
		moved_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		actor_id BIGINT REFERENCES operators(id),
		note TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		tax_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by BIGINT REFERENCES operators(id)
	)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id BIGSERIAL PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		customer_id BIGINT NOT NULL REFERENCES customers(id),
		invoice_date DATE NOT NULL,
		due_date DATE NOT NULL,
		subtotal NUMERIC(12,2) NOT NULL DEFAULT 0,
		tax_rate NUMERIC(6,2) NOT NULL DEFAULT 0,
		tax_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		discount_rate NUMERIC(6,2) NOT NULL DEFAULT 0,
		discount_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		total NUMERIC(12,2) NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'Unpaid'
			CHECK (status IN ('Unpaid', 'Partial', 'Paid', 'Overdue')),
		notes TEXT NOT NULL DEFAULT '',
		created_by BIGINT REFERENCES operators(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS invoice_lines (
		id BIGSERIAL PRIMARY KEY,
		invoice_id BIGINT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		item_id BIGINT NOT NULL REFERENCES items(id),
		description TEXT NOT NULL DEFAULT '',
		quantity BIGINT NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(12,2) NOT NULL CHECK (unit_price >= 0),
		total NUMERIC(12,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGSERIAL PRIMARY KEY,
		invoice_id BIGINT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		paid_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
		method TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		recorded_by BIGINT REFERENCES operators(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		actor_id BIGINT NOT NULL DEFAULT 0,
		action TEXT NOT NULL,
		entity TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		meta JSONB,
		occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_movements_item ON stock_movements(item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_customer ON invoices(customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_lines_item ON invoice_lines(item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_invoice ON payments(invoice_id)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("platform/db: ensure schema: %w", err)
		}
	}
	return nil
}

type seedItem struct {
	name        string
	description string
	category    string
	quantity    int64
	unitPrice   float64
	supplier    string
}

var seedCatalog = []seedItem{
	{"A4 Paper Ream", "80gsm, 500 sheets", "Stationery", 40, 4.50, "PaperWorks Ltd"},
	{"Ballpoint Pen Box", "Blue ink, box of 50", "Stationery", 25, 7.20, "PaperWorks Ltd"},
	{"Desk Stapler", "Full-strip metal stapler", "Office Equipment", 12, 9.99, "OfficeMart"},
	{"Thermal Receipt Roll", "80mm x 80mm", "Consumables", 60, 1.15, "PrintSupply"},
}

// Seed inserts the default admin, catalog and settings when the respective
// tables are empty. Safe to run on every startup.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	var operators int64
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM operators`).Scan(&operators); err != nil {
		return fmt.Errorf("platform/db: count operators: %w", err)
	}
	if operators == 0 {
		hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("platform/db: hash default secret: %w", err)
		}
		if _, err := pool.Exec(ctx,
			`INSERT INTO operators (username, secret_hash, role) VALUES ($1, $2, 'admin')`,
			"admin", string(hash)); err != nil {
			return fmt.Errorf("platform/db: seed admin: %w", err)
		}
	}

	var items int64
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&items); err != nil {
		return fmt.Errorf("platform/db: count items: %w", err)
	}
	if items == 0 {
		for _, it := range seedCatalog {
			var itemID int64
			err := pool.QueryRow(ctx,
				`INSERT INTO items (name, description, category, quantity, unit_price, supplier)
				 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
				it.name, it.description, it.category, it.quantity, it.unitPrice, it.supplier).Scan(&itemID)
			if err != nil {
				return fmt.Errorf("platform/db: seed item %q: %w", it.name, err)
			}
			if _, err := pool.Exec(ctx,
				`INSERT INTO stock_movements (item_id, direction, quantity, note) VALUES ($1, 'in', $2, 'Initial stock')`,
				itemID, it.quantity); err != nil {
				return fmt.Errorf("platform/db: seed movement for %q: %w", it.name, err)
			}
		}
	}

	for name, value := range settings.Defaults {
		if _, err := pool.Exec(ctx,
			`INSERT INTO settings (name, value) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
			name, value); err != nil {
			return fmt.Errorf("platform/db: seed setting %q: %w", name, err)
		}
	}

	return nil
}
