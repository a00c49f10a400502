package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/stock"
)

func qty(v int64) types.Quantity { return types.NewQuantityFromInt(v) }

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
	return &fixture{
		svc:         NewService(items, ledger),
		items:       items,
		ledger:      ledger,
		warehouseID: id.New(),
		productID:   id.New(),
	}
}

func (f *fixture) seedItem(t *testing.T, onHand, reserved, blocked int64) *stock.Item {
	t.Helper()
	item := stock.NewItem(stock.ItemKey{
		ProductID:   id.New(),
		WarehouseID: f.warehouseID,
	})
	require.NoError(t, item.Increase(qty(onHand)))
	if reserved > 0 {
		require.NoError(t, item.Reserve(qty(reserved)))
	}
	if blocked > 0 {
		require.NoError(t, item.Block(qty(blocked), "quarantine"))
	}
	require.NoError(t, f.items.Create(context.Background(), item))
	return item
}

func TestOnHand_TotalsAndAvailability(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, 100, 30, 0)
	f.seedItem(t, 50, 0, 20)

	report, err := f.svc.OnHand(context.Background(), stock.ItemFilter{
		WarehouseID: &f.warehouseID,
	})
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)

	assert.Equal(t, qty(150), report.Totals.OnHand)
	assert.Equal(t, qty(30), report.Totals.Reserved)
	assert.Equal(t, qty(20), report.Totals.Blocked)
	assert.Equal(t, qty(100), report.Totals.Available)
}

func TestOnHand_FiltersByWarehouse(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, 10, 0, 0)

	other := id.New()
	report, err := f.svc.OnHand(context.Background(), stock.ItemFilter{
		WarehouseID: &other,
	})
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
}

func TestHistory_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, 100, 0, 0)

	docID := id.New()
	first, err := stock.NewLedgerEntry(item, stock.MovementReceipt, qty(100), "Receipt", docID, nil)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Append(ctx, []stock.LedgerEntry{first}))

	second, err := stock.NewLedgerEntry(item, stock.MovementIssue, qty(40), "Issue", id.New(), nil)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Append(ctx, []stock.LedgerEntry{second}))

	entries, err := f.svc.History(ctx, stock.LedgerFilter{ProductID: &item.ProductID})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, stock.MovementIssue, entries[0].Movement)
	assert.Equal(t, stock.MovementReceipt, entries[1].Movement)

	filtered, err := f.svc.History(ctx, stock.LedgerFilter{DocumentID: &docID})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, qty(100), filtered[0].Quantity)
}

func TestTurnover_SplitsInboundOutbound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, 100, 0, 0)

	receipt, err := stock.NewLedgerEntry(item, stock.MovementReceipt, qty(100), "Receipt", id.New(), nil)
	require.NoError(t, err)
	issue, err := stock.NewLedgerEntry(item, stock.MovementIssue, qty(40), "Issue", id.New(), nil)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Append(ctx, []stock.LedgerEntry{receipt, issue}))

	turnover, err := f.svc.Turnover(ctx, stock.TurnoverFilter{
		WarehouseID: &f.warehouseID,
		From:        time.Now().Add(-time.Hour),
		To:          time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, qty(100), turnover.Inbound)
	assert.Equal(t, qty(40), turnover.Outbound)
	assert.Equal(t, qty(60), turnover.ClosingBalance)
}

func TestTurnover_RejectsInvertedPeriod(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Turnover(context.Background(), stock.TurnoverFilter{
		From: time.Now(),
		To:   time.Now().Add(-time.Hour),
	})
	assert.Error(t, err)
}
