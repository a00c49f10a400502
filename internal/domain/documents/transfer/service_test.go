package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/tx"
	"stockcore/internal/core/types"
	"stockcore/internal/domain"
	"stockcore/internal/domain/stock"
)

type fixture struct {
	svc       *Service
	items     *stock.MemoryItemRepository
	ledger    *stock.MemoryLedgerRepository
	sourceID  id.ID
	destID    id.ID
	productID id.ID
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
		svc:       svc,
		items:     items,
		ledger:    ledger,
		sourceID:  id.New(),
		destID:    id.New(),
		productID: id.New(),
	}
}

func qty(v int64) types.Quantity { return types.NewQuantityFromInt(v) }

func strPtr(s string) *string { return &s }

// seedSource puts unshelved stock into the source warehouse; transfers
// move bulk stock and do not require a shelf.
func (f *fixture) seedSource(t *testing.T, lot string, onHand int64, expiry *time.Time) *stock.Item {
	t.Helper()
	item := stock.NewItem(stock.ItemKey{
		ProductID:   f.productID,
		WarehouseID: f.sourceID,
		LotNumber:   &lot,
		ExpiryDate:  expiry,
	})
	require.NoError(t, item.Increase(qty(onHand)))
	require.NoError(t, f.items.Create(context.Background(), item))
	return item
}

func (f *fixture) draftWithSegments(t *testing.T, requested int64) *Transfer {
	t.Helper()
	ctx := context.Background()
	doc, err := f.svc.CreateDraft(ctx, f.sourceID, f.destID, nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, Requested: qty(requested)})
	require.NoError(t, err)
	doc, err = f.svc.AllocateLineFefo(ctx, doc.ID, 1)
	require.NoError(t, err)
	return doc
}

func TestCreateDraft_RejectsSelfTransfer(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateDraft(context.Background(), f.sourceID, f.sourceID, nil, nil)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestShipAndReceive_FullCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lot := "L1"
	source := f.seedSource(t, lot, 50, nil)

	doc := f.draftWithSegments(t, 20)
	require.Len(t, doc.Lines[0].Segments, 1)
	seg := doc.Lines[0].Segments[0]
	assert.Equal(t, source.ID, seg.SourceStockItemID)
	assert.Equal(t, qty(20), seg.ShippedQty)

	doc, err := f.svc.Ship(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, doc.Status)
	require.NotNil(t, doc.ShippedAt)

	// Shipping consumes the reservation: on-hand and reserved drop together.
	src, err := f.items.GetByID(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(30), src.OnHand)
	assert.Equal(t, qty(0), src.Reserved)

	doc, err = f.svc.ReceiveOnSegment(ctx, doc.ID, seg.SegmentID, qty(20))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, doc.Status)
	require.NotNil(t, doc.CompletedAt)

	// Destination item carries the same lot.
	dest, err := f.items.GetByKey(ctx, stock.ItemKey{
		ProductID:   f.productID,
		WarehouseID: f.destID,
		LotNumber:   &lot,
	})
	require.NoError(t, err)
	assert.Equal(t, qty(20), dest.OnHand)
	assert.Equal(t, qty(20), dest.Available())

	entries, err := f.ledger.List(ctx, stock.LedgerFilter{ProductID: &f.productID})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first: transfer_in then transfer_out.
	assert.Equal(t, stock.MovementTransferIn, entries[0].Movement)
	assert.Equal(t, qty(20), entries[0].Quantity)
	assert.Equal(t, stock.MovementTransferOut, entries[1].Movement)
	assert.Equal(t, qty(-20), entries[1].Quantity)
}

func TestReceive_PartialThenComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedSource(t, "L1", 50, nil)

	doc := f.draftWithSegments(t, 20)
	seg := doc.Lines[0].Segments[0]

	doc, err := f.svc.Ship(ctx, doc.ID)
	require.NoError(t, err)

	doc, err = f.svc.ReceiveOnSegment(ctx, doc.ID, seg.SegmentID, qty(8))
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyReceived, doc.Status)
	assert.Equal(t, qty(12), doc.Lines[0].Segments[0].RemainingToReceive())

	// Over-receiving the remainder is rejected.
	_, err = f.svc.ReceiveOnSegment(ctx, doc.ID, seg.SegmentID, qty(13))
	require.Error(t, err)

	doc, err = f.svc.ReceiveOnSegment(ctx, doc.ID, seg.SegmentID, qty(12))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, doc.Status)

	// Completed transfers accept no more receipts.
	_, err = f.svc.ReceiveOnSegment(ctx, doc.ID, seg.SegmentID, qty(1))
	assert.True(t, apperror.IsInvalidState(err))
}

func TestShip_RequiresFullSegmentation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedSource(t, "L1", 50, nil)

	doc, err := f.svc.CreateDraft(ctx, f.sourceID, f.destID, nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: f.productID, Requested: qty(20)})
	require.NoError(t, err)

	_, err = f.svc.Ship(ctx, doc.ID)
	require.Error(t, err, "unsegmented line blocks shipping")
}

func TestAllocate_FEFOSpansLots(t *testing.T) {
	f := newFixture(t)
	soonExpiry := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lateExpiry := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	f.seedSource(t, "L-LATE", 50, &lateExpiry)
	soon := f.seedSource(t, "L-SOON", 10, &soonExpiry)

	doc := f.draftWithSegments(t, 25)
	require.Len(t, doc.Lines[0].Segments, 2)
	assert.Equal(t, soon.ID, doc.Lines[0].Segments[0].SourceStockItemID)
	assert.Equal(t, qty(10), doc.Lines[0].Segments[0].ShippedQty)
	assert.Equal(t, qty(15), doc.Lines[0].Segments[1].ShippedQty)
}

func TestCancel_ReleasesSegments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	source := f.seedSource(t, "L1", 50, nil)

	doc := f.draftWithSegments(t, 20)

	doc, err := f.svc.Cancel(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, doc.Status)

	item, err := f.items.GetByID(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(0), item.Reserved)
	assert.Equal(t, qty(50), item.Available())

	// Idempotent second cancel.
	doc, err = f.svc.Cancel(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, doc.Status)

	// Shipped transfers cannot be canceled.
	f2 := newFixture(t)
	f2.seedSource(t, "L1", 50, nil)
	shipped := f2.draftWithSegments(t, 20)
	_, err = f2.svc.Ship(ctx, shipped.ID)
	require.NoError(t, err)
	_, err = f2.svc.Cancel(ctx, shipped.ID)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestEndToEnd_TwentyUnitsBetweenWarehouses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedSource(t, "L1", 100, nil)

	doc := f.draftWithSegments(t, 20)
	doc, err := f.svc.Ship(ctx, doc.ID)
	require.NoError(t, err)
	for _, seg := range doc.Lines[0].Segments {
		doc, err = f.svc.ReceiveOnSegment(ctx, doc.ID, seg.SegmentID, seg.ShippedQty)
		require.NoError(t, err)
	}
	assert.Equal(t, StatusCompleted, doc.Status)

	sourceItems, err := f.items.List(ctx, stock.ItemFilter{WarehouseID: &f.sourceID})
	require.NoError(t, err)
	require.Len(t, sourceItems, 1)
	assert.Equal(t, qty(80), sourceItems[0].OnHand)

	destItems, err := f.items.List(ctx, stock.ItemFilter{WarehouseID: &f.destID})
	require.NoError(t, err)
	require.Len(t, destItems, 1)
	assert.Equal(t, qty(20), destItems[0].OnHand)
}

func TestReceive_UnitCostPropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cost := types.MustMoney("7.30")
	source := f.seedSource(t, "L1", 50, nil)
	source.RecordUnitCost(cost)
	require.NoError(t, f.items.Update(ctx, source))

	doc := f.draftWithSegments(t, 10)
	seg := doc.Lines[0].Segments[0]
	doc, err := f.svc.Ship(ctx, doc.ID)
	require.NoError(t, err)
	_, err = f.svc.ReceiveOnSegment(ctx, doc.ID, seg.SegmentID, qty(10))
	require.NoError(t, err)

	dest, err := f.items.GetByKey(ctx, stock.ItemKey{
		ProductID:   f.productID,
		WarehouseID: f.destID,
		LotNumber:   strPtr("L1"),
	})
	require.NoError(t, err)
	require.NotNil(t, dest.LastUnitCost)
	assert.True(t, cost.Equal(*dest.LastUnitCost))
}

func TestRemoveLine_ShippedDocumentReportsInvalidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedSource(t, "L1", 100, nil)

	doc := f.draftWithSegments(t, 30)
	_, err := f.svc.Ship(ctx, doc.ID)
	require.NoError(t, err)

	_, err = f.svc.RemoveLine(ctx, doc.ID, 1)
	assert.True(t, apperror.IsInvalidState(err))
}
