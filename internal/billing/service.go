package billing

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tillbook/tillbook/internal/settings"
	"github.com/tillbook/tillbook/internal/shared"
	"github.com/tillbook/tillbook/report"
)

// SettingsPort is the slice of the settings service billing reads.
type SettingsPort interface {
	Get(ctx context.Context, name string) (string, error)
	Int(ctx context.Context, name string) (int, error)
	Decimal(ctx context.Context, name string) (float64, error)
	IntList(ctx context.Context, name string) ([]int, error)
	Company(ctx context.Context) (settings.Company, error)
}

// ServiceConfig tunes billing behavior.
type ServiceConfig struct {
	// AllowNegativeStock disables the sufficiency check at invoice creation,
	// letting item quantities go below zero.
	AllowNegativeStock bool
}

// Service implements the invoice lifecycle.
type Service struct {
	repo     RepositoryPort
	settings SettingsPort
	audit    shared.AuditPort
	cfg      ServiceConfig
	now      func() time.Time
}

// NewService builds a Service.
func NewService(repo RepositoryPort, settings SettingsPort, audit shared.AuditPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, settings: settings, audit: audit, cfg: cfg, now: time.Now}
}

// Number generation retries on a unique collision with a concurrent creator.
const maxNumberAttempts = 3

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// nextNumber derives the next invoice number from the most recent one. The
// numeric suffix is the first integer run of the last number plus one, floored
// at the configured starting number.
func nextNumber(prefix string, start int, last string) string {
	suffix := start
	if digits := firstIntegerRun(last); digits != "" {
		if n, err := strconv.Atoi(digits); err == nil && n+1 > suffix {
			suffix = n + 1
		}
	}
	return prefix + strconv.Itoa(suffix)
}

func firstIntegerRun(s string) string {
	begin := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if begin < 0 {
				begin = i
			}
			continue
		}
		if begin >= 0 {
			return s[begin:i]
		}
	}
	if begin >= 0 {
		return s[begin:]
	}
	return ""
}

func (s *Service) validateCreate(input CreateInvoiceInput) error {
	if input.CustomerID <= 0 {
		return shared.Missing("customer")
	}
	if len(input.Lines) == 0 {
		return shared.Missing("invoice lines")
	}
	if input.TaxRate < 0 {
		return shared.Invalid("tax rate must be a non-negative number")
	}
	if input.DiscountRate < 0 {
		return shared.Invalid("discount rate must be a non-negative number")
	}
	for _, line := range input.Lines {
		if line.ItemID <= 0 {
			return shared.Missing("line item")
		}
		if line.Quantity <= 0 {
			return shared.Invalid("line quantity must be a positive integer")
		}
		if line.UnitPrice < 0 {
			return shared.Invalid("line unit price must be a non-negative number")
		}
	}
	return nil
}

// CreateInvoice validates the command, computes totals, generates the next
// invoice number and writes invoice, lines, stock decrements and movements in
// one transaction. Returns the new invoice id and number.
func (s *Service) CreateInvoice(ctx context.Context, actor shared.Actor, input CreateInvoiceInput) (int64, string, error) {
	if err := s.validateCreate(input); err != nil {
		return 0, "", err
	}

	invoiceDate := input.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = s.now()
	}
	dueDate := input.DueDate
	if dueDate.IsZero() {
		days, err := s.settings.Int(ctx, settings.KeyDefaultDueDays)
		if err != nil {
			return 0, "", err
		}
		dueDate = invoiceDate.AddDate(0, 0, days)
	}

	var subtotal float64
	lineTotals := make([]float64, len(input.Lines))
	for i, line := range input.Lines {
		lineTotals[i] = round2(float64(line.Quantity) * line.UnitPrice)
		subtotal += lineTotals[i]
	}
	subtotal = round2(subtotal)
	taxAmount := round2(subtotal * input.TaxRate / 100)
	discountAmount := round2(subtotal * input.DiscountRate / 100)
	total := round2(subtotal + taxAmount - discountAmount)

	prefix, err := s.settings.Get(ctx, settings.KeyInvoicePrefix)
	if err != nil {
		return 0, "", err
	}
	start, err := s.settings.Int(ctx, settings.KeyInvoiceStartingNumber)
	if err != nil {
		return 0, "", err
	}

	var invoiceID int64
	var number string
	for attempt := 1; ; attempt++ {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			last, err := tx.LatestInvoiceNumber(ctx)
			if err != nil {
				return err
			}
			number = nextNumber(prefix, start, last)

			invoiceID, err = tx.InsertInvoice(ctx, Invoice{
				Number:         number,
				CustomerID:     input.CustomerID,
				InvoiceDate:    invoiceDate,
				DueDate:        dueDate,
				Subtotal:       subtotal,
				TaxRate:        input.TaxRate,
				TaxAmount:      taxAmount,
				DiscountRate:   input.DiscountRate,
				DiscountAmount: discountAmount,
				Total:          total,
				Status:         StatusUnpaid,
				Notes:          input.Notes,
				CreatedBy:      actor.ID,
			})
			if err != nil {
				return err
			}

			movementNote := fmt.Sprintf("Invoice #%s", number)
			for i, line := range input.Lines {
				itemName, stock, err := tx.ItemForUpdate(ctx, line.ItemID)
				if err != nil {
					return err
				}
				if !s.cfg.AllowNegativeStock && stock < line.Quantity {
					return shared.Insufficient(stock, line.Quantity)
				}

				description := line.Description
				if strings.TrimSpace(description) == "" {
					description = itemName
				}
				if _, err := tx.InsertLine(ctx, InvoiceLine{
					InvoiceID:   invoiceID,
					ItemID:      line.ItemID,
					Description: description,
					Quantity:    line.Quantity,
					UnitPrice:   line.UnitPrice,
					Total:       lineTotals[i],
				}); err != nil {
					return err
				}
				if err := tx.DecrementStock(ctx, line.ItemID, line.Quantity, actor.ID); err != nil {
					return err
				}
				if err := tx.InsertMovement(ctx, line.ItemID, line.Quantity, actor.ID, movementNote); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			break
		}
		// A concurrent creator can win the same number; take the next one.
		if shared.KindOf(err) == shared.KindTaken && attempt < maxNumberAttempts {
			continue
		}
		return 0, "", err
	}

	s.recordAudit(ctx, actor.ID, "billing:create_invoice", invoiceID, map[string]any{
		"number": number,
		"total":  total,
	})
	return invoiceID, number, nil
}

// RecordPayment appends a payment and re-derives the invoice status in one
// transaction. Returns the payment id and the new status.
func (s *Service) RecordPayment(ctx context.Context, actor shared.Actor, invoiceID int64, input PaymentInput) (int64, Status, error) {
	if input.Amount <= 0 {
		return 0, "", shared.Invalid("amount must be a positive number")
	}

	at := input.At
	if at.IsZero() {
		at = s.now()
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		reference = uuid.NewString()
	}

	var paymentID int64
	var status Status
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.InvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}

		paid, err := tx.SumPayments(ctx, invoiceID)
		if err != nil {
			return err
		}
		status = DeriveStatus(paid+input.Amount, inv.Total)

		paymentID, err = tx.InsertPayment(ctx, Payment{
			InvoiceID:  invoiceID,
			At:         at,
			Amount:     input.Amount,
			Method:     input.Method,
			Reference:  reference,
			Note:       input.Note,
			RecordedBy: actor.ID,
		})
		if err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, invoiceID, status)
	})
	if err != nil {
		return 0, "", err
	}

	s.recordAudit(ctx, actor.ID, "billing:record_payment", invoiceID, map[string]any{
		"amount": input.Amount,
		"status": status,
	})
	return paymentID, status, nil
}

// SearchInvoices returns summaries matching the filter. Status "All" matches
// every status.
func (s *Service) SearchInvoices(ctx context.Context, filter SearchFilter) ([]InvoiceSummary, error) {
	if filter.Status == "All" {
		filter.Status = ""
	}
	return s.repo.Search(ctx, filter)
}

// InvoiceDetails assembles the full aggregate view of an invoice.
func (s *Service) InvoiceDetails(ctx context.Context, id int64) (*InvoiceDetails, error) {
	header, err := s.repo.GetHeader(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.Lines(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.Payments(ctx, id)
	if err != nil {
		return nil, err
	}

	var paid float64
	for _, p := range payments {
		paid += p.Amount
	}
	paid = round2(paid)

	return &InvoiceDetails{
		Header:   *header,
		Lines:    lines,
		Payments: payments,
		Paid:     paid,
		Balance:  round2(header.Total - paid),
	}, nil
}

// RenderDocument assembles the printable snapshot of an invoice, combining
// the aggregate with the company settings.
func (s *Service) RenderDocument(ctx context.Context, id int64) (*report.InvoiceDocument, error) {
	details, err := s.InvoiceDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	company, err := s.settings.Company(ctx)
	if err != nil {
		return nil, err
	}
	symbol, err := s.settings.Get(ctx, settings.KeyCurrencySymbol)
	if err != nil {
		return nil, err
	}

	doc := report.InvoiceDocument{
		Number:      details.Header.Number,
		InvoiceDate: details.Header.InvoiceDate,
		DueDate:     details.Header.DueDate,
		Status:      string(details.Header.Status),
		Notes:       details.Header.Notes,
		Company: report.CompanyBlock{
			Name:    company.Name,
			Address: company.Address,
			Phone:   company.Phone,
			Email:   company.Email,
			Website: company.Website,
			TaxID:   company.TaxID,
		},
		Customer: report.CustomerBlock{
			Name:    details.Header.Customer.Name,
			Email:   details.Header.Customer.Email,
			Phone:   details.Header.Customer.Phone,
			Address: details.Header.Customer.Address,
			TaxID:   details.Header.Customer.TaxID,
		},
		Subtotal:       details.Header.Subtotal,
		TaxRate:        details.Header.TaxRate,
		TaxAmount:      details.Header.TaxAmount,
		DiscountRate:   details.Header.DiscountRate,
		DiscountAmount: details.Header.DiscountAmount,
		Total:          details.Header.Total,
		Paid:           details.Paid,
		Balance:        details.Balance,
		CurrencySymbol: symbol,
	}
	for _, line := range details.Lines {
		doc.Lines = append(doc.Lines, report.DocumentLine{
			ItemName:    line.ItemName,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Total:       line.Total,
		})
	}
	for _, p := range details.Payments {
		doc.Payments = append(doc.Payments, report.DocumentPayment{
			At:        p.At,
			Amount:    p.Amount,
			Method:    p.Method,
			Reference: p.Reference,
		})
	}
	return &doc, nil
}

// MarkOverdue promotes open invoices past their due date to Overdue and
// returns how many were promoted. Run from the scheduled scan.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	count, err := s.repo.PromoteOverdue(ctx, asOf)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.recordAudit(ctx, 0, "billing:mark_overdue", 0, map[string]any{"count": count})
	}
	return count, nil
}

// ListDueSoon returns open invoices whose due date is exactly one of the
// configured reminder offsets ahead of asOf.
func (s *Service) ListDueSoon(ctx context.Context, asOf time.Time) ([]InvoiceSummary, error) {
	days, err := s.settings.IntList(ctx, settings.KeyReminderDaysBefore)
	if err != nil {
		return nil, err
	}
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, 0, len(days))
	for _, d := range days {
		dates = append(dates, day.AddDate(0, 0, d))
	}
	return s.repo.DueOn(ctx, dates)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, invoiceID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: strconv.FormatInt(invoiceID, 10),
		Meta:     meta,
	})
}
