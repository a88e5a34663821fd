package billing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tillbook/tillbook/internal/settings"
	"github.com/tillbook/tillbook/internal/shared"
)

type fakeItem struct {
	name     string
	quantity int64
}

type fakeMovement struct {
	itemID   int64
	quantity int64
	note     string
}

type fakeRepo struct {
	invoices  map[int64]Invoice
	lines     []InvoiceLine
	payments  []Payment
	items     map[int64]*fakeItem
	customers map[int64]CustomerBlock
	movements []fakeMovement

	nextInvoice int64
	nextLine    int64
	nextPayment int64

	// failTaken makes the next n invoice inserts collide on number.
	failTaken int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		invoices:    make(map[int64]Invoice),
		items:       make(map[int64]*fakeItem),
		customers:   make(map[int64]CustomerBlock),
		nextInvoice: 1,
		nextLine:    1,
		nextPayment: 1,
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) GetHeader(_ context.Context, id int64) (*InvoiceHeader, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, shared.NotFound("invoice")
	}
	return &InvoiceHeader{Invoice: inv, Customer: f.customers[inv.CustomerID]}, nil
}

func (f *fakeRepo) Search(_ context.Context, filter SearchFilter) ([]InvoiceSummary, error) {
	var out []InvoiceSummary
	for _, inv := range f.invoices {
		if filter.Status != "" && string(inv.Status) != filter.Status {
			continue
		}
		if filter.CustomerID != 0 && inv.CustomerID != filter.CustomerID {
			continue
		}
		name := f.customers[inv.CustomerID].Name
		if filter.Term != "" {
			needle := strings.ToLower(filter.Term)
			if !strings.Contains(strings.ToLower(inv.Number), needle) &&
				!strings.Contains(strings.ToLower(name), needle) {
				continue
			}
		}
		out = append(out, InvoiceSummary{
			ID: inv.ID, Number: inv.Number, CustomerID: inv.CustomerID,
			CustomerName: name, InvoiceDate: inv.InvoiceDate, DueDate: inv.DueDate,
			Total: inv.Total, Status: inv.Status,
		})
	}
	return out, nil
}

func (f *fakeRepo) Lines(_ context.Context, invoiceID int64) ([]InvoiceLine, error) {
	var out []InvoiceLine
	for _, l := range f.lines {
		if l.InvoiceID == invoiceID {
			l.ItemName = f.items[l.ItemID].name
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeRepo) Payments(_ context.Context, invoiceID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range f.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) SumPayments(_ context.Context, invoiceID int64) (float64, error) {
	var sum float64
	for _, p := range f.payments {
		if p.InvoiceID == invoiceID {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (f *fakeRepo) PromoteOverdue(_ context.Context, asOf time.Time) (int64, error) {
	var count int64
	for id, inv := range f.invoices {
		if (inv.Status == StatusUnpaid || inv.Status == StatusPartial) && inv.DueDate.Before(asOf) {
			inv.Status = StatusOverdue
			f.invoices[id] = inv
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) DueOn(_ context.Context, dates []time.Time) ([]InvoiceSummary, error) {
	var out []InvoiceSummary
	for _, inv := range f.invoices {
		if inv.Status == StatusPaid {
			continue
		}
		for _, d := range dates {
			if inv.DueDate.Year() == d.Year() && inv.DueDate.YearDay() == d.YearDay() {
				out = append(out, InvoiceSummary{ID: inv.ID, Number: inv.Number, DueDate: inv.DueDate, Status: inv.Status})
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) LatestInvoiceNumber(context.Context) (string, error) {
	var latest string
	var latestID int64
	for id, inv := range f.invoices {
		if id > latestID {
			latestID = id
			latest = inv.Number
		}
	}
	return latest, nil
}

func (f *fakeRepo) InsertInvoice(_ context.Context, inv Invoice) (int64, error) {
	if f.failTaken > 0 {
		f.failTaken--
		return 0, shared.Taken("invoice number")
	}
	for _, existing := range f.invoices {
		if existing.Number == inv.Number {
			return 0, shared.Taken("invoice number")
		}
	}
	inv.ID = f.nextInvoice
	f.nextInvoice++
	f.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (f *fakeRepo) InsertLine(_ context.Context, line InvoiceLine) (int64, error) {
	line.ID = f.nextLine
	f.nextLine++
	f.lines = append(f.lines, line)
	return line.ID, nil
}

func (f *fakeRepo) ItemForUpdate(_ context.Context, itemID int64) (string, int64, error) {
	item, ok := f.items[itemID]
	if !ok {
		return "", 0, shared.NotFound("item")
	}
	return item.name, item.quantity, nil
}

func (f *fakeRepo) DecrementStock(_ context.Context, itemID, quantity, _ int64) error {
	f.items[itemID].quantity -= quantity
	return nil
}

func (f *fakeRepo) InsertMovement(_ context.Context, itemID, quantity, _ int64, note string) error {
	f.movements = append(f.movements, fakeMovement{itemID: itemID, quantity: quantity, note: note})
	return nil
}

func (f *fakeRepo) InvoiceForUpdate(_ context.Context, id int64) (*Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, shared.NotFound("invoice")
	}
	return &inv, nil
}

func (f *fakeRepo) InsertPayment(_ context.Context, p Payment) (int64, error) {
	p.ID = f.nextPayment
	f.nextPayment++
	f.payments = append(f.payments, p)
	return p.ID, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, invoiceID int64, status Status) error {
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return shared.NotFound("invoice")
	}
	inv.Status = status
	f.invoices[invoiceID] = inv
	return nil
}

// fakeSettingsRepo stores nothing, so the settings service always serves the
// documented defaults.
type fakeSettingsRepo struct {
	values map[string]string
}

func (f *fakeSettingsRepo) Get(_ context.Context, name string) (string, error) {
	if v, ok := f.values[name]; ok {
		return v, nil
	}
	return "", shared.NotFound("setting")
}

func (f *fakeSettingsRepo) Set(_ context.Context, name, value string) error {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[name] = value
	return nil
}

func (f *fakeSettingsRepo) All(context.Context) (map[string]string, error) {
	return f.values, nil
}

func testActor() shared.Actor {
	return shared.Actor{ID: 5, Username: "clerk", Role: "user"}
}

func newTestService(repo *fakeRepo, cfg ServiceConfig) *Service {
	svc := NewService(repo, settings.NewService(&fakeSettingsRepo{}), nil, cfg)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func seedCustomerAndItem(repo *fakeRepo) {
	repo.customers[1] = CustomerBlock{Name: "Acme Ltd"}
	repo.items[10] = &fakeItem{name: "Widget A", quantity: 10}
}

func TestCreateInvoiceDecrementsStock(t *testing.T) {
	repo := newFakeRepo()
	seedCustomerAndItem(repo)
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	id, number, err := svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 3, UnitPrice: 5}},
		TaxRate:    10,
	})
	require.NoError(t, err)
	require.Equal(t, "INV-1001", number)

	inv := repo.invoices[id]
	require.Equal(t, 15.0, inv.Subtotal)
	require.Equal(t, 1.5, inv.TaxAmount)
	require.Equal(t, 0.0, inv.DiscountAmount)
	require.Equal(t, 16.5, inv.Total)
	require.Equal(t, StatusUnpaid, inv.Status)

	require.Equal(t, int64(7), repo.items[10].quantity)
	require.Len(t, repo.movements, 1)
	require.Equal(t, int64(3), repo.movements[0].quantity)
	require.Equal(t, "Invoice #INV-1001", repo.movements[0].note)
}

func TestInvoiceNumberSequence(t *testing.T) {
	repo := newFakeRepo()
	seedCustomerAndItem(repo)
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, first, err := svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 1, UnitPrice: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, "INV-1001", first)

	_, second, err := svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 1, UnitPrice: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, "INV-1002", second)
}

func TestNextNumber(t *testing.T) {
	require.Equal(t, "INV-1001", nextNumber("INV-", 1001, ""))
	require.Equal(t, "INV-1043", nextNumber("INV-", 1001, "INV-1042"))
	require.Equal(t, "INV-1001", nextNumber("INV-", 1001, "INV-7"))
	require.Equal(t, "BILL/500", nextNumber("BILL/", 100, "BILL/499"))
}

func TestCreateInvoiceInsufficientStock(t *testing.T) {
	repo := newFakeRepo()
	seedCustomerAndItem(repo)
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, _, err := svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 11, UnitPrice: 5}},
	})
	require.Equal(t, shared.KindInsufficient, shared.KindOf(err))
	require.Empty(t, repo.invoices)
}

func TestCreateInvoiceNegativeStockAllowed(t *testing.T) {
	repo := newFakeRepo()
	seedCustomerAndItem(repo)
	svc := newTestService(repo, ServiceConfig{AllowNegativeStock: true})
	ctx := context.Background()

	_, _, err := svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 11, UnitPrice: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(-1), repo.items[10].quantity)
}

func TestCreateInvoiceRetriesOnNumberCollision(t *testing.T) {
	repo := newFakeRepo()
	seedCustomerAndItem(repo)
	repo.failTaken = 1
	svc := newTestService(repo, ServiceConfig{})

	_, number, err := svc.CreateInvoice(context.Background(), testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 1, UnitPrice: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, "INV-1001", number)
}

func TestCreateInvoiceValidation(t *testing.T) {
	repo := newFakeRepo()
	seedCustomerAndItem(repo)
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, _, err := svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		Lines: []LineInput{{ItemID: 10, Quantity: 1, UnitPrice: 5}},
	})
	require.Equal(t, shared.KindMissing, shared.KindOf(err))

	_, _, err = svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{CustomerID: 1})
	require.Equal(t, shared.KindMissing, shared.KindOf(err))

	_, _, err = svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 0, UnitPrice: 5}},
	})
	require.Equal(t, shared.KindInvalid, shared.KindOf(err))

	_, _, err = svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 1, UnitPrice: 5}},
		TaxRate:    -2,
	})
	require.Equal(t, shared.KindInvalid, shared.KindOf(err))
}

func TestCreateInvoiceDefaultsDueDate(t *testing.T) {
	repo := newFakeRepo()
	seedCustomerAndItem(repo)
	svc := newTestService(repo, ServiceConfig{})

	id, _, err := svc.CreateInvoice(context.Background(), testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 1, UnitPrice: 5}},
	})
	require.NoError(t, err)

	inv := repo.invoices[id]
	require.Equal(t, inv.InvoiceDate.AddDate(0, 0, 30), inv.DueDate)
}

func TestPaymentStatusProgression(t *testing.T) {
	repo := newFakeRepo()
	seedCustomerAndItem(repo)
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	id, _, err := svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 10, UnitPrice: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, 100.0, repo.invoices[id].Total)

	_, status, err := svc.RecordPayment(ctx, testActor(), id, PaymentInput{Amount: 40})
	require.NoError(t, err)
	require.Equal(t, StatusPartial, status)

	_, status, err = svc.RecordPayment(ctx, testActor(), id, PaymentInput{Amount: 60})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, status)

	// Overpayment is accepted and the invoice stays Paid.
	_, status, err = svc.RecordPayment(ctx, testActor(), id, PaymentInput{Amount: 1})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, status)
}

func TestRecordPaymentDefaults(t *testing.T) {
	repo := newFakeRepo()
	seedCustomerAndItem(repo)
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	id, _, err := svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 1, UnitPrice: 50}},
	})
	require.NoError(t, err)

	_, _, err = svc.RecordPayment(ctx, testActor(), id, PaymentInput{Amount: 10})
	require.NoError(t, err)

	p := repo.payments[0]
	require.False(t, p.At.IsZero())
	require.NotEmpty(t, p.Reference)
}

func TestRecordPaymentRejectsNonPositive(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{})

	_, _, err := svc.RecordPayment(context.Background(), testActor(), 1, PaymentInput{Amount: 0})
	require.Equal(t, shared.KindInvalid, shared.KindOf(err))

	_, _, err = svc.RecordPayment(context.Background(), testActor(), 1, PaymentInput{Amount: -5})
	require.Equal(t, shared.KindInvalid, shared.KindOf(err))
}

func TestInvoiceDetailsRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	seedCustomerAndItem(repo)
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	id, _, err := svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		CustomerID:   1,
		Lines:        []LineInput{{ItemID: 10, Quantity: 3, UnitPrice: 5}, {ItemID: 10, Quantity: 2, UnitPrice: 7.5}},
		TaxRate:      10,
		DiscountRate: 5,
	})
	require.NoError(t, err)

	details, err := svc.InvoiceDetails(ctx, id)
	require.NoError(t, err)

	var lineSum float64
	for _, l := range details.Lines {
		lineSum += l.Total
	}
	require.Equal(t, details.Header.Subtotal, lineSum)
	require.Equal(t, details.Header.Total,
		details.Header.Subtotal+details.Header.TaxAmount-details.Header.DiscountAmount)
	require.Equal(t, details.Header.Total, details.Balance)
	require.Equal(t, 0.0, details.Paid)
	require.Equal(t, "Acme Ltd", details.Header.Customer.Name)
}

func TestRenderDocumentAssemblesSnapshot(t *testing.T) {
	repo := newFakeRepo()
	seedCustomerAndItem(repo)
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	id, number, err := svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 2, UnitPrice: 25}},
		TaxRate:    7.5,
	})
	require.NoError(t, err)

	_, _, err = svc.RecordPayment(ctx, testActor(), id, PaymentInput{Amount: 20, Method: "Cash"})
	require.NoError(t, err)

	doc, err := svc.RenderDocument(ctx, id)
	require.NoError(t, err)
	require.Equal(t, number, doc.Number)
	require.Equal(t, "Tillbook Trading Co.", doc.Company.Name)
	require.Equal(t, "Acme Ltd", doc.Customer.Name)
	require.Equal(t, "N", doc.CurrencySymbol)
	require.Len(t, doc.Lines, 1)
	require.Equal(t, "Widget A", doc.Lines[0].ItemName)
	require.Equal(t, 20.0, doc.Paid)
	require.Equal(t, doc.Total-20, doc.Balance)
	require.Len(t, doc.Payments, 1)
}

func TestMarkOverduePromotesPastDue(t *testing.T) {
	repo := newFakeRepo()
	seedCustomerAndItem(repo)
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	id, _, err := svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 1, UnitPrice: 50}},
		DueDate:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	count, err := svc.MarkOverdue(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, StatusOverdue, repo.invoices[id].Status)

	// Recording a payment re-derives the payment-based status.
	_, status, err := svc.RecordPayment(ctx, testActor(), id, PaymentInput{Amount: 50})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, status)
}

func TestListDueSoonUsesReminderOffsets(t *testing.T) {
	repo := newFakeRepo()
	seedCustomerAndItem(repo)
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	asOf := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	// Default reminder offsets are 7, 3 and 1 days ahead.
	_, _, err := svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 1, UnitPrice: 50}},
		DueDate:    time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, _, err = svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 1, UnitPrice: 50}},
		DueDate:    time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	due, err := svc.ListDueSoon(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "INV-1001", due[0].Number)
}

func TestSearchInvoicesAllSuppressesStatus(t *testing.T) {
	repo := newFakeRepo()
	seedCustomerAndItem(repo)
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, _, err := svc.CreateInvoice(ctx, testActor(), CreateInvoiceInput{
		CustomerID: 1,
		Lines:      []LineInput{{ItemID: 10, Quantity: 1, UnitPrice: 50}},
	})
	require.NoError(t, err)

	all, err := svc.SearchInvoices(ctx, SearchFilter{Status: "All"})
	require.NoError(t, err)
	require.Len(t, all, 1)

	paid, err := svc.SearchInvoices(ctx, SearchFilter{Status: "Paid"})
	require.NoError(t, err)
	require.Empty(t, paid)

	byName, err := svc.SearchInvoices(ctx, SearchFilter{Term: "acme"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
}
