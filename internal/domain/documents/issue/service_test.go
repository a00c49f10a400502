package issue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/retry"
	"stockcore/internal/core/tx"
	"stockcore/internal/core/types"
	"stockcore/internal/domain"
	"stockcore/internal/domain/stock"
)

type fixture struct {
	svc         *Service
	items       *stock.MemoryItemRepository
	ledger      *stock.MemoryLedgerRepository
	warehouseID id.ID
	productID   id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	items := stock.NewMemoryItemRepository()
	ledger := stock.NewMemoryLedgerRepository()
	stockSvc := stock.NewService(items, ledger)

	svc := NewService(
		NewMemoryRepository(),
		stockSvc,
		stock.NewAllocator(items),
		&numerator.MockGenerator{},
		tx.Passthrough{},
		domain.AllowAllWarehouses{},
	)
	return &fixture{
		svc:         svc,
		items:       items,
		ledger:      ledger,
		warehouseID: id.New(),
		productID:   id.New(),
	}
}

func qty(v int64) types.Quantity { return types.NewQuantityFromInt(v) }

func strPtr(s string) *string { return &s }

// seedStock puts shelved, available stock into the warehouse.
func (f *fixture) seedStock(t *testing.T, lot string, onHand int64, expiry *time.Time, cost *types.Money) *stock.Item {
	t.Helper()
	item := stock.NewItem(stock.ItemKey{
		ProductID:   f.productID,
		WarehouseID: f.warehouseID,
		LotNumber:   &lot,
		ExpiryDate:  expiry,
	})
	require.NoError(t, item.Increase(qty(onHand)))
	require.NoError(t, item.AssignShelf("A-01"))
	if cost != nil {
		item.RecordUnitCost(*cost)
	}
	require.NoError(t, f.items.Create(context.Background(), item))
	return item
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestAllocateAndPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cost := types.MustMoney("4.20")
	seeded := f.seedStock(t, "L1", 100, nil, &cost)

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, strPtr("ORD-7"), nil)
	require.NoError(t, err)

	doc, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, Requested: qty(30)})
	require.NoError(t, err)

	doc, err = f.svc.AllocateLineFefo(ctx, doc.ID, 1)
	require.NoError(t, err)
	require.Len(t, doc.Lines[0].Allocations, 1)
	assert.Equal(t, qty(0), doc.Lines[0].Remaining())

	item, err := f.items.GetByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(30), item.Reserved)

	doc, err = f.svc.Post(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, doc.Status)
	require.NotNil(t, doc.PostedAt)

	item, err = f.items.GetByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(70), item.OnHand)
	assert.Equal(t, qty(0), item.Reserved)

	entries, err := f.ledger.List(ctx, stock.LedgerFilter{ProductID: &f.productID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, stock.MovementIssue, entries[0].Movement)
	assert.Equal(t, qty(-30), entries[0].Quantity)
	require.NotNil(t, entries[0].UnitCost)
	assert.True(t, cost.Equal(*entries[0].UnitCost))
}

func TestPost_RequiresFullAllocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedStock(t, "L1", 100, nil, nil)

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, Requested: qty(30)})
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, doc.ID)
	require.Error(t, err, "unallocated line blocks posting")

	_, err = f.svc.AllocateLineFefo(ctx, doc.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, doc.ID)
	require.NoError(t, err)
}

func TestPost_EmptyDocumentRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, nil, nil)
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, doc.ID)
	assert.Error(t, err)
}

func TestAllocate_ShortfallLeavesNoReservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedStock(t, "L1", 10, nil, nil)

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, Requested: qty(30)})
	require.NoError(t, err)

	_, err = f.svc.AllocateLineFefo(ctx, doc.ID, 1)
	require.Error(t, err)
	assert.True(t, apperror.IsCapacity(err))

	// All-or-nothing: the document keeps no allocations. The partial
	// reservation rollback is the transaction's job, exercised against
	// the real store.
	doc, err = f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, doc.Lines[0].Allocations)
	_ = seeded
}

func TestReallocate_ReleasesExistingFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedStock(t, "L1", 100, nil, nil)

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, Requested: qty(30)})
	require.NoError(t, err)

	_, err = f.svc.AllocateLineFefo(ctx, doc.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.AllocateLineFefo(ctx, doc.ID, 1)
	require.NoError(t, err)

	// Re-allocation must not double-reserve.
	item, err := f.items.GetByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(30), item.Reserved)
}

func TestAllocate_FEFOAcrossLots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedStock(t, "L-LATE", 50, datePtr(2025, 6, 1), nil)
	soon := f.seedStock(t, "L-SOON", 20, datePtr(2025, 1, 1), nil)

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, Requested: qty(30)})
	require.NoError(t, err)

	doc, err = f.svc.AllocateLineFefo(ctx, doc.ID, 1)
	require.NoError(t, err)
	require.Len(t, doc.Lines[0].Allocations, 2)
	assert.Equal(t, soon.ID, doc.Lines[0].Allocations[0].StockItemID)
	assert.Equal(t, qty(20), doc.Lines[0].Allocations[0].Quantity)
	assert.Equal(t, qty(10), doc.Lines[0].Allocations[1].Quantity)
}

func TestCancel_ReleasesAllocationsAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedStock(t, "L1", 100, nil, nil)

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, Requested: qty(30)})
	require.NoError(t, err)
	_, err = f.svc.AllocateLineFefo(ctx, doc.ID, 1)
	require.NoError(t, err)

	doc, err = f.svc.Cancel(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, doc.Status)

	item, err := f.items.GetByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(0), item.Reserved)
	assert.Equal(t, qty(100), item.Available())

	// Second cancel is a no-op, not an error.
	doc, err = f.svc.Cancel(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, doc.Status)

	// Posting a canceled issue is illegal.
	_, err = f.svc.Post(ctx, doc.ID)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestRemoveLine_ReleasesAllocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedStock(t, "L1", 100, nil, nil)

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, Requested: qty(30)})
	require.NoError(t, err)
	_, err = f.svc.AllocateLineFefo(ctx, doc.ID, 1)
	require.NoError(t, err)

	doc, err = f.svc.RemoveLine(ctx, doc.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, doc.Lines)

	item, err := f.items.GetByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(0), item.Reserved)
}

func TestAllocate_UnshelvedStockInvisible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Unshelved stock is not sellable.
	item := stock.NewItem(stock.ItemKey{
		ProductID:   f.productID,
		WarehouseID: f.warehouseID,
		LotNumber:   strPtr("L-BULK"),
	})
	require.NoError(t, item.Increase(qty(100)))
	require.NoError(t, f.items.Create(ctx, item))

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, Requested: qty(10)})
	require.NoError(t, err)

	_, err = f.svc.AllocateLineFefo(ctx, doc.ID, 1)
	require.Error(t, err)
	assert.True(t, apperror.IsCapacity(err))
}

func TestDeleteDraft_ReleasesAllocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedStock(t, "L1", 100, nil, nil)

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, Requested: qty(30)})
	require.NoError(t, err)
	_, err = f.svc.AllocateLineFefo(ctx, doc.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteDraft(ctx, doc.ID))

	_, err = f.svc.GetByID(ctx, doc.ID)
	assert.True(t, apperror.IsNotFound(err))

	item, err := f.items.GetByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(0), item.Reserved)
	assert.Equal(t, qty(100), item.Available())
}

func TestDeleteDraft_PostedDocumentRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedStock(t, "L1", 100, nil, nil)

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, Requested: qty(30)})
	require.NoError(t, err)
	_, err = f.svc.AllocateLineFefo(ctx, doc.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, doc.ID)
	require.NoError(t, err)

	err = f.svc.DeleteDraft(ctx, doc.ID)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestLineEdits_PostedDocumentReportsInvalidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedStock(t, "L1", 100, nil, nil)

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, Requested: qty(30)})
	require.NoError(t, err)
	_, err = f.svc.AllocateLineFefo(ctx, doc.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, doc.ID)
	require.NoError(t, err)

	_, err = f.svc.UpdateLine(ctx, doc.ID, 1, Line{ProductID: f.productID, Requested: qty(10)})
	assert.True(t, apperror.IsInvalidState(err))

	_, err = f.svc.RemoveLine(ctx, doc.ID, 1)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestPost_TunedRetrySurvivesTransientConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.SetRetryConfig(retry.Config{Attempts: 5, BaseDelay: time.Millisecond})
	f.seedStock(t, "L1", 100, nil, nil)

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, Requested: qty(30)})
	require.NoError(t, err)
	_, err = f.svc.AllocateLineFefo(ctx, doc.ID, 1)
	require.NoError(t, err)

	// First three item updates during posting conflict, then the hook
	// clears; five attempts must be enough.
	conflicts := 3
	f.items.UpdateHook = func(item *stock.Item) error {
		if conflicts > 0 {
			conflicts--
			return apperror.NewConcurrentModification("stock_item", item.ID.String())
		}
		return nil
	}

	doc, err = f.svc.Post(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, doc.Status)
	assert.Zero(t, conflicts)
}
