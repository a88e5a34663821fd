package parties

import (
	"context"
	"strconv"
	"strings"

	"github.com/tillbook/tillbook/internal/shared"
)

// Service coordinates customer commands.
type Service struct {
	repo  RepositoryPort
	audit shared.AuditPort
}

// NewService builds a Service.
func NewService(repo RepositoryPort, audit shared.AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// AddCustomer validates and stores a new customer.
func (s *Service) AddCustomer(ctx context.Context, actor shared.Actor, input CustomerInput) (int64, error) {
	if strings.TrimSpace(input.Name) == "" {
		return 0, shared.Missing("name")
	}

	id, err := s.repo.Create(ctx, input, actor.ID)
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, actor.ID, "parties:add_customer", id, map[string]any{"name": input.Name})
	return id, nil
}

// UpdateCustomer validates and stores changes to an existing customer.
func (s *Service) UpdateCustomer(ctx context.Context, actor shared.Actor, id int64, input CustomerInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return shared.Missing("name")
	}

	if err := s.repo.Update(ctx, id, input); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "parties:update_customer", id, map[string]any{"name": input.Name})
	return nil
}

// DeleteCustomer removes a customer unless invoices still reference them.
func (s *Service) DeleteCustomer(ctx context.Context, actor shared.Actor, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		refs, err := tx.CountInvoiceRefs(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return shared.InUse("customer", int(refs))
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "parties:delete_customer", id, nil)
	return nil
}

// GetCustomer fetches a single customer.
func (s *Service) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

// ListCustomers returns customers matching the filter.
func (s *Service) ListCustomers(ctx context.Context, filter Filter) ([]Customer, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, customerID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "customer",
		EntityID: strconv.FormatInt(customerID, 10),
		Meta:     meta,
	})
}
