// Package catalog manages inventory items and their stock levels, recording
// every quantity change as an append-only stock movement.
package catalog

import "time"

// Direction tags a stock movement as inbound or outbound.
type Direction string

const (
	// DirectionIn represents stock entering the inventory.
	DirectionIn Direction = "in"
	// DirectionOut represents stock leaving the inventory.
	DirectionOut Direction = "out"
)

// Valid reports whether the direction is a known value.
func (d Direction) Valid() bool { return d == DirectionIn || d == DirectionOut }

// Item is a catalog entry with its current stock level.
type Item struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Quantity    int64     `json:"quantity"`
	UnitPrice   float64   `json:"unit_price"`
	Supplier    string    `json:"supplier"`
	LastUpdated time.Time `json:"last_updated"`
	UpdatedBy   int64     `json:"updated_by"`
}

// StockMovement is one append-only record of a quantity change.
type StockMovement struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	ItemName  string    `json:"item_name,omitempty"`
	Direction Direction `json:"direction"`
	Quantity  int64     `json:"quantity"`
	MovedAt   time.Time `json:"moved_at"`
	ActorID   int64     `json:"actor_id"`
	Note      string    `json:"note"`
}

// ItemInput carries create/update parameters for an item.
type ItemInput struct {
	Name        string
	Description string
	Category    string
	Quantity    int64
	UnitPrice   float64
	Supplier    string
}

// ItemFilter narrows item listings. Search is a case-insensitive substring
// over name, description and supplier.
type ItemFilter struct {
	Search   string
	Category string
}

// MovementFilter narrows movement listings. Zero fields are ignored; date
// bounds are inclusive.
type MovementFilter struct {
	From      time.Time
	To        time.Time
	Direction Direction
	ItemID    int64
}
