package receipt

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
	svc         *Service
	items       *stock.MemoryItemRepository
	ledger      *stock.MemoryLedgerRepository
	stockSvc    *stock.Service
	warehouseID id.ID
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
		stockSvc:    stockSvc,
		warehouseID: id.New(),
	}
}

func qty(v int64) types.Quantity { return types.NewQuantityFromInt(v) }

func strPtr(s string) *string { return &s }

func TestCreateDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, "Purchase", strPtr("SUP-42"), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, doc.Status)
	assert.NotEmpty(t, doc.Number)
	assert.Empty(t, doc.Lines)

	_, err = f.svc.CreateDraft(ctx, f.warehouseID, "", nil, nil)
	assert.Error(t, err, "reason is required")
}

func TestLineEditing_OnlyWhileDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, "Purchase", nil, nil)
	require.NoError(t, err)

	doc, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: id.New(), Quantity: qty(5)})
	require.NoError(t, err)
	require.Len(t, doc.Lines, 1)

	doc, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: id.New(), Quantity: qty(3)})
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Lines[1].LineNo)

	doc, err = f.svc.RemoveLine(ctx, doc.ID, 1)
	require.NoError(t, err)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, 1, doc.Lines[0].LineNo, "lines renumber after removal")

	doc, err = f.svc.Receive(ctx, doc.ID)
	require.NoError(t, err)

	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: id.New(), Quantity: qty(1)})
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestReceive_QuarantinesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := id.New()

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, "Purchase", nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{
		ProductID: productID,
		Quantity:  qty(100),
		LotNumber: strPtr("L1"),
	})
	require.NoError(t, err)

	doc, err = f.svc.Receive(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, doc.Status)
	require.NotNil(t, doc.ReceivedAt)

	item, err := f.items.GetByKey(ctx, stock.ItemKey{
		ProductID:   productID,
		WarehouseID: f.warehouseID,
		LotNumber:   strPtr("L1"),
	})
	require.NoError(t, err)
	assert.Equal(t, qty(100), item.OnHand)
	assert.Equal(t, qty(100), item.Blocked)
	assert.Equal(t, qty(0), item.Available())
	require.NotNil(t, item.BlockReason)
	assert.Equal(t, stock.BlockReasonQuarantine, *item.BlockReason)

	entries, err := f.ledger.List(ctx, stock.LedgerFilter{ProductID: &productID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, stock.MovementReceipt, entries[0].Movement)
	assert.Equal(t, qty(100), entries[0].Quantity)
	assert.Equal(t, DocumentType, entries[0].DocumentType)
	assert.Equal(t, doc.ID, entries[0].DocumentID)
}

func TestApprove_ReleasesQuarantine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := id.New()

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, "Purchase", nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{
		ProductID: productID,
		Quantity:  qty(100),
		LotNumber: strPtr("L1"),
	})
	require.NoError(t, err)
	_, err = f.svc.Receive(ctx, doc.ID)
	require.NoError(t, err)

	doc, err = f.svc.Approve(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, doc.Status)
	require.NotNil(t, doc.ApprovedAt)

	item, err := f.items.GetByKey(ctx, stock.ItemKey{
		ProductID:   productID,
		WarehouseID: f.warehouseID,
		LotNumber:   strPtr("L1"),
	})
	require.NoError(t, err)
	assert.Equal(t, qty(100), item.OnHand)
	assert.Equal(t, qty(0), item.Blocked)
	assert.Equal(t, qty(100), item.Available())
	assert.Nil(t, item.BlockReason)

	// Approval writes no ledger entries; the receipt entry stands alone.
	entries, err := f.ledger.List(ctx, stock.LedgerFilter{ProductID: &productID})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReceive_RecordsUnitCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := id.New()
	cost := types.MustMoney("12.50")

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, "Purchase", nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{
		ProductID: productID,
		Quantity:  qty(10),
		UnitCost:  &cost,
	})
	require.NoError(t, err)
	_, err = f.svc.Receive(ctx, doc.ID)
	require.NoError(t, err)

	item, err := f.items.GetByKey(ctx, stock.ItemKey{
		ProductID:   productID,
		WarehouseID: f.warehouseID,
	})
	require.NoError(t, err)
	require.NotNil(t, item.LastUnitCost)
	assert.True(t, cost.Equal(*item.LastUnitCost))

	entries, err := f.ledger.List(ctx, stock.LedgerFilter{ProductID: &productID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].UnitCost)
	assert.True(t, cost.Equal(*entries[0].UnitCost))
}

func TestTransitionTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	newDraft := func(withLine bool) *Receipt {
		doc, err := f.svc.CreateDraft(ctx, f.warehouseID, "Purchase", nil, nil)
		require.NoError(t, err)
		if withLine {
			_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: id.New(), Quantity: qty(1)})
			require.NoError(t, err)
		}
		return doc
	}

	// Draft with no lines cannot be received.
	empty := newDraft(false)
	_, err := f.svc.Receive(ctx, empty.ID)
	assert.Error(t, err)

	// Draft cannot be approved.
	draft := newDraft(true)
	_, err = f.svc.Approve(ctx, draft.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))

	// Received cannot be received again or canceled.
	received := newDraft(true)
	_, err = f.svc.Receive(ctx, received.ID)
	require.NoError(t, err)
	_, err = f.svc.Receive(ctx, received.ID)
	assert.True(t, apperror.IsInvalidState(err))
	_, err = f.svc.Cancel(ctx, received.ID)
	assert.True(t, apperror.IsInvalidState(err))

	// Approved is terminal: no receive, approve or cancel.
	approved := newDraft(true)
	_, err = f.svc.Receive(ctx, approved.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, approved.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, approved.ID)
	assert.True(t, apperror.IsInvalidState(err))
	_, err = f.svc.Cancel(ctx, approved.ID)
	assert.True(t, apperror.IsInvalidState(err))

	// Canceled draft stays canceled; second cancel is a no-op.
	canceled := newDraft(true)
	doc, err := f.svc.Cancel(ctx, canceled.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, doc.Status)
	doc, err = f.svc.Cancel(ctx, canceled.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, doc.Status)
	_, err = f.svc.Receive(ctx, canceled.ID)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestReceive_SameProductTwoLots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := id.New()
	expiry := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, "Purchase", nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{
		ProductID: productID, Quantity: qty(10), LotNumber: strPtr("L1"),
	})
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{
		ProductID: productID, Quantity: qty(20), LotNumber: strPtr("L2"), ExpiryDate: &expiry,
	})
	require.NoError(t, err)

	_, err = f.svc.Receive(ctx, doc.ID)
	require.NoError(t, err)

	// Distinct lots land on distinct stock items.
	all, err := f.items.List(ctx, stock.ItemFilter{ProductID: &productID})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, "Purchase", nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: id.New(), Quantity: qty(10)})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteDraft(ctx, doc.ID))
	_, err = f.svc.GetByID(ctx, doc.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeleteDraft_ReceivedDocumentRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.CreateDraft(ctx, f.warehouseID, "Purchase", nil, nil)
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, doc.ID, Line{ProductID: id.New(), Quantity: qty(10)})
	require.NoError(t, err)
	_, err = f.svc.Receive(ctx, doc.ID)
	require.NoError(t, err)

	err = f.svc.DeleteDraft(ctx, doc.ID)
	assert.True(t, apperror.IsInvalidState(err))
}
