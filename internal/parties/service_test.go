package parties

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tillbook/tillbook/internal/shared"
)

type fakeRepo struct {
	customers map[int64]Customer
	refs      map[int64]int64
	next      int64
	onTx      func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{customers: make(map[int64]Customer), refs: make(map[int64]int64), next: 1}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if f.onTx != nil {
		f.onTx()
	}
	return fn(ctx, f)
}

func (f *fakeRepo) Get(_ context.Context, id int64) (*Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, shared.NotFound("customer")
	}
	return &c, nil
}

func (f *fakeRepo) List(_ context.Context, filter Filter) ([]Customer, error) {
	var out []Customer
	for _, c := range f.customers {
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(c.Name), needle) &&
				!strings.Contains(strings.ToLower(c.Email), needle) &&
				!strings.Contains(c.Phone, filter.Search) {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRepo) Create(_ context.Context, input CustomerInput, createdBy int64) (int64, error) {
	id := f.next
	f.next++
	f.customers[id] = Customer{
		ID: id, Name: input.Name, Email: input.Email, Phone: input.Phone,
		Address: input.Address, TaxID: input.TaxID, CreatedAt: time.Now(), CreatedBy: createdBy,
	}
	return id, nil
}

func (f *fakeRepo) Update(_ context.Context, id int64, input CustomerInput) error {
	c, ok := f.customers[id]
	if !ok {
		return shared.NotFound("customer")
	}
	c.Name, c.Email, c.Phone, c.Address, c.TaxID = input.Name, input.Email, input.Phone, input.Address, input.TaxID
	f.customers[id] = c
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.customers[id]; !ok {
		return shared.NotFound("customer")
	}
	delete(f.customers, id)
	return nil
}

func (f *fakeRepo) CountInvoiceRefs(_ context.Context, customerID int64) (int64, error) {
	return f.refs[customerID], nil
}

func testActor() shared.Actor {
	return shared.Actor{ID: 3, Username: "clerk", Role: "user"}
}

func TestAddCustomerRequiresName(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	_, err := svc.AddCustomer(context.Background(), testActor(), CustomerInput{Name: "  "})
	require.Equal(t, shared.KindMissing, shared.KindOf(err))
}

func TestCustomerRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.AddCustomer(ctx, testActor(), CustomerInput{
		Name:  "Acme Ltd",
		Email: "billing@acme.test",
		Phone: "0801",
	})
	require.NoError(t, err)

	got, err := svc.GetCustomer(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Acme Ltd", got.Name)

	err = svc.UpdateCustomer(ctx, testActor(), id, CustomerInput{Name: "Acme Limited", Email: got.Email})
	require.NoError(t, err)

	got, err = svc.GetCustomer(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Acme Limited", got.Name)
}

func TestDeleteCustomerBlockedWhenInvoiced(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.AddCustomer(ctx, testActor(), CustomerInput{Name: "Acme Ltd"})
	require.NoError(t, err)
	repo.refs[id] = 3

	err = svc.DeleteCustomer(ctx, testActor(), id)
	require.Equal(t, shared.KindInUse, shared.KindOf(err))

	var tagged *shared.Error
	require.ErrorAs(t, err, &tagged)
	require.Equal(t, 3, tagged.Refs)

	_, err = svc.GetCustomer(ctx, id)
	require.NoError(t, err)
}

func TestDeleteCustomerChecksReferencesInTransaction(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.AddCustomer(ctx, testActor(), CustomerInput{Name: "Acme Ltd"})
	require.NoError(t, err)

	// An invoice lands just as the deletion transaction opens.
	repo.onTx = func() { repo.refs[id] = 1 }

	err = svc.DeleteCustomer(ctx, testActor(), id)
	require.Equal(t, shared.KindInUse, shared.KindOf(err))

	_, err = svc.GetCustomer(ctx, id)
	require.NoError(t, err)
}

func TestDeleteCustomerWithoutInvoices(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.AddCustomer(ctx, testActor(), CustomerInput{Name: "Acme Ltd"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCustomer(ctx, testActor(), id))

	_, err = svc.GetCustomer(ctx, id)
	require.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestListCustomersSearch(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.AddCustomer(ctx, testActor(), CustomerInput{Name: "Acme Ltd", Email: "a@acme.test"})
	require.NoError(t, err)
	_, err = svc.AddCustomer(ctx, testActor(), CustomerInput{Name: "Globex", Email: "g@globex.test"})
	require.NoError(t, err)

	found, err := svc.ListCustomers(ctx, Filter{Search: "acme"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "Acme Ltd", found[0].Name)
}
