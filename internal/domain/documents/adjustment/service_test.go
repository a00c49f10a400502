package adjustment

import (
	"context"
	"sync"
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

func (f *fixture) seedStock(t *testing.T, onHand int64) *stock.Item {
	t.Helper()
	item := stock.NewItem(stock.ItemKey{
		ProductID:   f.productID,
		WarehouseID: f.warehouseID,
	})
	require.NoError(t, item.Increase(qty(onHand)))
	require.NoError(t, f.items.Create(context.Background(), item))
	return item
}

func (f *fixture) postDelta(t *testing.T, delta types.Quantity) *Adjustment {
	t.Helper()
	ctx := context.Background()
	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, "stocktake", "", nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, QtyDelta: delta})
	require.NoError(t, err)
	doc, err = f.svc.Post(ctx, doc.ID)
	require.NoError(t, err)
	return doc
}

func TestPost_PositiveDeltaCreatesItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.postDelta(t, qty(10))
	assert.Equal(t, StatusPosted, doc.Status)
	require.NotNil(t, doc.PostedAt)

	// Item was created lazily by the posting.
	item, err := f.items.GetByKey(ctx, stock.ItemKey{
		ProductID:   f.productID,
		WarehouseID: f.warehouseID,
	})
	require.NoError(t, err)
	assert.Equal(t, qty(10), item.OnHand)

	entries, err := f.ledger.List(ctx, stock.LedgerFilter{ProductID: &f.productID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, stock.MovementAdjustmentPlus, entries[0].Movement)
	assert.Equal(t, qty(10), entries[0].Quantity)
}

func TestPost_NegativeDelta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedStock(t, 50)

	f.postDelta(t, qty(-4))

	item, err := f.items.GetByKey(ctx, stock.ItemKey{
		ProductID:   f.productID,
		WarehouseID: f.warehouseID,
	})
	require.NoError(t, err)
	assert.Equal(t, qty(46), item.OnHand)

	entries, err := f.ledger.List(ctx, stock.LedgerFilter{ProductID: &f.productID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, stock.MovementAdjustmentMinus, entries[0].Movement)
	assert.Equal(t, qty(-4), entries[0].Quantity)
}

func TestPost_NegativeBeyondAvailableFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedStock(t, 3)

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, "damage", "", nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, QtyDelta: qty(-5)})
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCapacity(err))

	// The document stays draft.
	doc, err = f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, doc.Status)
}

func TestPost_ZeroDeltaLineRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, "stocktake", "", nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, QtyDelta: qty(0)})
	require.Error(t, err)
}

func TestPost_EmptyDocumentRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, "stocktake", "", nil)
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, doc.ID)
	assert.Error(t, err)
}

func TestCancel_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, "stocktake", "", nil)
	require.NoError(t, err)

	doc, err = f.svc.Cancel(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, doc.Status)

	doc, err = f.svc.Cancel(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, doc.Status)

	_, err = f.svc.Post(ctx, doc.ID)
	assert.True(t, apperror.IsInvalidState(err))
}

// Two concurrent postings against the same stock item: one +10, one -4.
// Both must succeed through the retry loop and no update may be lost.
func TestPost_ConcurrentAdjustments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.SetRetryConfig(retry.Config{Attempts: 8, BaseDelay: time.Millisecond})
	f.seedStock(t, 50)

	docA, err := f.svc.CreateDraft(ctx, f.warehouseID, "stocktake", "", nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, docA.ID, Line{ProductID: f.productID, QtyDelta: qty(10)})
	require.NoError(t, err)

	docB, err := f.svc.CreateDraft(ctx, f.warehouseID, "stocktake", "", nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, docB.ID, Line{ProductID: f.productID, QtyDelta: qty(-4)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, docID := range []id.ID{docA.ID, docB.ID} {
		wg.Add(1)
		go func(i int, docID id.ID) {
			defer wg.Done()
			_, errs[i] = f.svc.Post(ctx, docID)
		}(i, docID)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	item, err := f.items.GetByKey(ctx, stock.ItemKey{
		ProductID:   f.productID,
		WarehouseID: f.warehouseID,
	})
	require.NoError(t, err)
	assert.Equal(t, qty(56), item.OnHand)

	entries, err := f.ledger.List(ctx, stock.LedgerFilter{ProductID: &f.productID})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRetryExhaustion_SurfacesConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.SetRetryConfig(retry.Config{Attempts: 3, BaseDelay: time.Millisecond})
	f.seedStock(t, 50)

	// Every item update conflicts; the retry loop must give up with a
	// concurrency error carrying the attempt count.
	f.items.UpdateHook = func(item *stock.Item) error {
		return apperror.NewConcurrentModification("stock_item", item.ID.String())
	}

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, "stocktake", "", nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, QtyDelta: qty(1)})
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrentModification(err))
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.NotNil(t, appErr.Details["attempts"])
}
