package catalog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tillbook/tillbook/internal/shared"
)

type fakeRepo struct {
	items     map[int64]Item
	movements []StockMovement
	lineRefs  map[int64]int64
	nextItem  int64
	nextMove  int64
	onTx      func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		items:    make(map[int64]Item),
		lineRefs: make(map[int64]int64),
		nextItem: 1,
		nextMove: 1,
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if f.onTx != nil {
		f.onTx()
	}
	return fn(ctx, f)
}

func (f *fakeRepo) GetItem(_ context.Context, id int64) (*Item, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, shared.NotFound("item")
	}
	return &item, nil
}

func (f *fakeRepo) GetItemForUpdate(ctx context.Context, id int64) (*Item, error) {
	return f.GetItem(ctx, id)
}

func (f *fakeRepo) ListItems(_ context.Context, filter ItemFilter) ([]Item, error) {
	var out []Item
	for _, item := range f.items {
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeRepo) Categories(context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, item := range f.items {
		if !seen[item.Category] {
			seen[item.Category] = true
			out = append(out, item.Category)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListMovements(_ context.Context, filter MovementFilter) ([]StockMovement, error) {
	var out []StockMovement
	for _, m := range f.movements {
		if filter.ItemID != 0 && m.ItemID != filter.ItemID {
			continue
		}
		if filter.Direction != "" && m.Direction != filter.Direction {
			continue
		}
		if !filter.From.IsZero() && m.MovedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !m.MovedAt.Before(filter.To.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeRepo) CountInvoiceLineRefs(_ context.Context, itemID int64) (int64, error) {
	return f.lineRefs[itemID], nil
}

func (f *fakeRepo) InsertItem(_ context.Context, item Item) (int64, error) {
	item.ID = f.nextItem
	f.nextItem++
	f.items[item.ID] = item
	return item.ID, nil
}

func (f *fakeRepo) UpdateItem(_ context.Context, item Item) error {
	if _, ok := f.items[item.ID]; !ok {
		return shared.NotFound("item")
	}
	f.items[item.ID] = item
	return nil
}

func (f *fakeRepo) DeleteItem(_ context.Context, id int64) error {
	if _, ok := f.items[id]; !ok {
		return shared.NotFound("item")
	}
	delete(f.items, id)
	return nil
}

func (f *fakeRepo) DeleteMovementsForItem(_ context.Context, itemID int64) error {
	kept := f.movements[:0]
	for _, m := range f.movements {
		if m.ItemID != itemID {
			kept = append(kept, m)
		}
	}
	f.movements = kept
	return nil
}

func (f *fakeRepo) InsertMovement(_ context.Context, m StockMovement) (int64, error) {
	m.ID = f.nextMove
	f.nextMove++
	f.movements = append(f.movements, m)
	return m.ID, nil
}

func testActor() shared.Actor {
	return shared.Actor{ID: 7, Username: "clerk", Role: "user"}
}

func sumMovements(moves []StockMovement) int64 {
	var total int64
	for _, m := range moves {
		if m.Direction == DirectionIn {
			total += m.Quantity
		} else {
			total -= m.Quantity
		}
	}
	return total
}

func TestAddItemRecordsInitialStock(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	id, err := svc.AddItem(context.Background(), testActor(), ItemInput{
		Name:      "Widget",
		Category:  "Hardware",
		Quantity:  5,
		UnitPrice: 2.50,
	})
	require.NoError(t, err)

	require.Len(t, repo.movements, 1)
	require.Equal(t, DirectionIn, repo.movements[0].Direction)
	require.Equal(t, int64(5), repo.movements[0].Quantity)
	require.Equal(t, "Initial stock", repo.movements[0].Note)
	require.Equal(t, id, repo.movements[0].ItemID)
}

func TestAddItemZeroQuantitySkipsMovement(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	_, err := svc.AddItem(context.Background(), testActor(), ItemInput{
		Name:     "Empty",
		Category: "Hardware",
	})
	require.NoError(t, err)
	require.Empty(t, repo.movements)
}

func TestAddItemValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, testActor(), ItemInput{Category: "Hardware"})
	require.Equal(t, shared.KindMissing, shared.KindOf(err))

	_, err = svc.AddItem(ctx, testActor(), ItemInput{Name: "Widget"})
	require.Equal(t, shared.KindMissing, shared.KindOf(err))

	_, err = svc.AddItem(ctx, testActor(), ItemInput{Name: "Widget", Category: "Hardware", Quantity: -1})
	require.Equal(t, shared.KindInvalid, shared.KindOf(err))

	_, err = svc.AddItem(ctx, testActor(), ItemInput{Name: "Widget", Category: "Hardware", UnitPrice: -0.5})
	require.Equal(t, shared.KindInvalid, shared.KindOf(err))
}

func TestUpdateItemEmitsAdjustmentMovement(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.AddItem(ctx, testActor(), ItemInput{Name: "Widget", Category: "Hardware", Quantity: 5})
	require.NoError(t, err)

	err = svc.UpdateItem(ctx, testActor(), id, ItemInput{Name: "Widget", Category: "Hardware", Quantity: 2})
	require.NoError(t, err)

	require.Len(t, repo.movements, 2)
	adj := repo.movements[1]
	require.Equal(t, DirectionOut, adj.Direction)
	require.Equal(t, int64(3), adj.Quantity)
	require.Equal(t, "Manual adjustment", adj.Note)

	item, err := svc.GetItem(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(2), item.Quantity)
}

func TestUpdateItemSameQuantityNoMovement(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.AddItem(ctx, testActor(), ItemInput{Name: "Widget", Category: "Hardware", Quantity: 5})
	require.NoError(t, err)

	err = svc.UpdateItem(ctx, testActor(), id, ItemInput{Name: "Widget renamed", Category: "Hardware", Quantity: 5})
	require.NoError(t, err)
	require.Len(t, repo.movements, 1)
}

func TestStockLedgerStaysConsistent(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.AddItem(ctx, testActor(), ItemInput{Name: "Widget", Category: "Hardware", Quantity: 5})
	require.NoError(t, err)

	err = svc.UpdateItem(ctx, testActor(), id, ItemInput{Name: "Widget", Category: "Hardware", Quantity: 2})
	require.NoError(t, err)

	err = svc.AdjustStock(ctx, testActor(), id, DirectionIn, 10, "Restock")
	require.NoError(t, err)

	item, err := svc.GetItem(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(12), item.Quantity)

	moves, err := svc.Movements(ctx, MovementFilter{ItemID: id})
	require.NoError(t, err)
	require.Equal(t, item.Quantity, sumMovements(moves))
}

func TestAdjustStockInsufficient(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.AddItem(ctx, testActor(), ItemInput{Name: "Widget", Category: "Hardware", Quantity: 3})
	require.NoError(t, err)

	err = svc.AdjustStock(ctx, testActor(), id, DirectionOut, 5, "Oversell")
	require.Equal(t, shared.KindInsufficient, shared.KindOf(err))

	item, err := svc.GetItem(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(3), item.Quantity)
}

func TestAdjustStockRejectsBadInput(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	err := svc.AdjustStock(ctx, testActor(), 1, Direction("sideways"), 1, "")
	require.Equal(t, shared.KindInvalid, shared.KindOf(err))

	err = svc.AdjustStock(ctx, testActor(), 1, DirectionIn, 0, "")
	require.Equal(t, shared.KindInvalid, shared.KindOf(err))
}

func TestDeleteItemBlockedWhenReferenced(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.AddItem(ctx, testActor(), ItemInput{Name: "Widget", Category: "Hardware", Quantity: 5})
	require.NoError(t, err)
	repo.lineRefs[id] = 2

	err = svc.DeleteItem(ctx, testActor(), id)
	require.Equal(t, shared.KindInUse, shared.KindOf(err))

	var tagged *shared.Error
	require.ErrorAs(t, err, &tagged)
	require.Equal(t, 2, tagged.Refs)
}

func TestDeleteItemChecksReferencesInTransaction(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.AddItem(ctx, testActor(), ItemInput{Name: "Widget", Category: "Hardware", Quantity: 5})
	require.NoError(t, err)

	// An invoice line lands just as the deletion transaction opens.
	repo.onTx = func() { repo.lineRefs[id] = 1 }

	err = svc.DeleteItem(ctx, testActor(), id)
	require.Equal(t, shared.KindInUse, shared.KindOf(err))
	require.Len(t, repo.items, 1)
}

func TestMovementDateBoundsIncludeFinalDay(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.AddItem(ctx, testActor(), ItemInput{Name: "Widget", Category: "Hardware", Quantity: 5})
	require.NoError(t, err)

	day := func(value string) time.Time {
		t.Helper()
		parsed, err := time.Parse(time.RFC3339, value)
		require.NoError(t, err)
		return parsed
	}
	repo.movements = []StockMovement{
		{ID: 1, ItemID: id, Direction: DirectionIn, Quantity: 5, MovedAt: day("2026-03-09T23:00:00Z")},
		{ID: 2, ItemID: id, Direction: DirectionIn, Quantity: 2, MovedAt: day("2026-03-10T09:00:00Z")},
		{ID: 3, ItemID: id, Direction: DirectionOut, Quantity: 1, MovedAt: day("2026-03-11T00:30:00Z")},
	}

	got, err := svc.Movements(ctx, MovementFilter{
		From: day("2026-03-10T00:00:00Z"),
		To:   day("2026-03-10T00:00:00Z"),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(2), got[0].ID)

	got, err = svc.Movements(ctx, MovementFilter{From: day("2026-03-10T00:00:00Z")})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestDeleteItemRemovesMovements(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.AddItem(ctx, testActor(), ItemInput{Name: "Widget", Category: "Hardware", Quantity: 5})
	require.NoError(t, err)

	err = svc.DeleteItem(ctx, testActor(), id)
	require.NoError(t, err)
	require.Empty(t, repo.items)
	require.Empty(t, repo.movements)
}
