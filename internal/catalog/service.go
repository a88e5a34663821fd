package catalog

import (
	"context"
	"strconv"
	"strings"

	"github.com/tillbook/tillbook/internal/shared"
)

// Service coordinates catalog commands. Every mutation runs inside a single
// transaction so stock levels and movements never diverge.
type Service struct {
	repo  RepositoryPort
	audit shared.AuditPort
}

// NewService builds a Service.
func NewService(repo RepositoryPort, audit shared.AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

func validateInput(input ItemInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return shared.Missing("name")
	}
	if strings.TrimSpace(input.Category) == "" {
		return shared.Missing("category")
	}
	if input.Quantity < 0 {
		return shared.Invalid("quantity must be a non-negative integer")
	}
	if input.UnitPrice < 0 {
		return shared.Invalid("unit price must be a non-negative number")
	}
	return nil
}

// AddItem inserts a new item and records its opening stock movement.
func (s *Service) AddItem(ctx context.Context, actor shared.Actor, input ItemInput) (int64, error) {
	if err := validateInput(input); err != nil {
		return 0, err
	}

	var itemID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		itemID, err = tx.InsertItem(ctx, Item{
			Name:        input.Name,
			Description: input.Description,
			Category:    input.Category,
			Quantity:    input.Quantity,
			UnitPrice:   input.UnitPrice,
			Supplier:    input.Supplier,
			UpdatedBy:   actor.ID,
		})
		if err != nil {
			return err
		}
		// A zero opening quantity has no movement to record.
		if input.Quantity > 0 {
			_, err = tx.InsertMovement(ctx, StockMovement{
				ItemID:    itemID,
				Direction: DirectionIn,
				Quantity:  input.Quantity,
				ActorID:   actor.ID,
				Note:      "Initial stock",
			})
		}
		return err
	})
	if err != nil {
		return 0, err
	}

	s.recordAudit(ctx, actor.ID, "catalog:add_item", itemID, map[string]any{"name": input.Name, "quantity": input.Quantity})
	return itemID, nil
}

// UpdateItem re-validates and stores the item, emitting a manual-adjustment
// movement when the supplied quantity differs from the stored one.
func (s *Service) UpdateItem(ctx context.Context, actor shared.Actor, id int64, input ItemInput) error {
	if err := validateInput(input); err != nil {
		return err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stored, err := tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}

		diff := input.Quantity - stored.Quantity
		if err := tx.UpdateItem(ctx, Item{
			ID:          id,
			Name:        input.Name,
			Description: input.Description,
			Category:    input.Category,
			Quantity:    input.Quantity,
			UnitPrice:   input.UnitPrice,
			Supplier:    input.Supplier,
			UpdatedBy:   actor.ID,
		}); err != nil {
			return err
		}

		if diff != 0 {
			direction := DirectionIn
			if diff < 0 {
				direction = DirectionOut
				diff = -diff
			}
			if _, err := tx.InsertMovement(ctx, StockMovement{
				ItemID:    id,
				Direction: direction,
				Quantity:  diff,
				ActorID:   actor.ID,
				Note:      "Manual adjustment",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actor.ID, "catalog:update_item", id, map[string]any{"quantity": input.Quantity})
	return nil
}

// DeleteItem removes an item and its movement history, refusing when any
// invoice line references the item.
func (s *Service) DeleteItem(ctx context.Context, actor shared.Actor, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		refs, err := tx.CountInvoiceLineRefs(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return shared.InUse("item", int(refs))
		}
		if err := tx.DeleteMovementsForItem(ctx, id); err != nil {
			return err
		}
		return tx.DeleteItem(ctx, id)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actor.ID, "catalog:delete_item", id, nil)
	return nil
}

// AdjustStock applies a manual in/out movement to an item's quantity.
func (s *Service) AdjustStock(ctx context.Context, actor shared.Actor, id int64, direction Direction, quantity int64, note string) error {
	if !direction.Valid() {
		return shared.Invalid("direction must be in or out")
	}
	if quantity <= 0 {
		return shared.Invalid("quantity must be a positive integer")
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}

		newQty := item.Quantity
		if direction == DirectionIn {
			newQty += quantity
		} else {
			if item.Quantity < quantity {
				return shared.Insufficient(item.Quantity, quantity)
			}
			newQty -= quantity
		}

		item.Quantity = newQty
		item.UpdatedBy = actor.ID
		if err := tx.UpdateItem(ctx, *item); err != nil {
			return err
		}

		_, err = tx.InsertMovement(ctx, StockMovement{
			ItemID:    id,
			Direction: direction,
			Quantity:  quantity,
			ActorID:   actor.ID,
			Note:      note,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actor.ID, "catalog:adjust_stock", id, map[string]any{
		"direction": direction,
		"quantity":  quantity,
		"note":      note,
	})
	return nil
}

// GetItem fetches a single item.
func (s *Service) GetItem(ctx context.Context, id int64) (*Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems returns items matching the filter.
func (s *Service) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	return s.repo.ListItems(ctx, filter)
}

// Categories lists the distinct categories in the catalog.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

// Movements returns the filtered movement log.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	if filter.Direction != "" && !filter.Direction.Valid() {
		return nil, shared.Invalid("direction must be in or out")
	}
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, itemID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "item",
		EntityID: strconv.FormatInt(itemID, 10),
		Meta:     meta,
	})
}
