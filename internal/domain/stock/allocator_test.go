package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
)

type allocatorFixture struct {
	repo        *MemoryItemRepository
	allocator   *Allocator
	warehouseID id.ID
	productID   id.ID
}

func newAllocatorFixture(t *testing.T) *allocatorFixture {
	t.Helper()
	repo := NewMemoryItemRepository()
	return &allocatorFixture{
		repo:        repo,
		allocator:   NewAllocator(repo),
		warehouseID: id.New(),
		productID:   id.New(),
	}
}

// addLot seeds an on-hand lot, shelved, with an optional expiry.
func (f *allocatorFixture) addLot(t *testing.T, lot string, onHand int64, expiry *time.Time) *Item {
	t.Helper()
	item := NewItem(ItemKey{
		ProductID:   f.productID,
		WarehouseID: f.warehouseID,
		LotNumber:   &lot,
		ExpiryDate:  expiry,
	})
	require.NoError(t, item.Increase(qty(onHand)))
	require.NoError(t, item.AssignShelf("A-01"))
	require.NoError(t, f.repo.Create(context.Background(), item))
	return item
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func (f *allocatorFixture) request(quantity int64) AllocationRequest {
	return AllocationRequest{
		WarehouseID:  f.warehouseID,
		ProductID:    f.productID,
		Quantity:     qty(quantity),
		RequireShelf: true,
	}
}

func TestAllocate_FEFOOrder(t *testing.T) {
	f := newAllocatorFixture(t)
	ctx := context.Background()

	// Lots deliberately seeded out of expiry order; the one without an
	// expiry date must come last.
	noExpiry := f.addLot(t, "LOT-C", 10, nil)
	late := f.addLot(t, "LOT-B", 10, datePtr(2025, 6, 1))
	soon := f.addLot(t, "LOT-A", 10, datePtr(2025, 1, 1))

	got, err := f.allocator.Allocate(ctx, f.request(25))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, soon.ID, got[0].StockItemID)
	assert.Equal(t, qty(10), got[0].Quantity)
	assert.Equal(t, late.ID, got[1].StockItemID)
	assert.Equal(t, qty(10), got[1].Quantity)
	assert.Equal(t, noExpiry.ID, got[2].StockItemID)
	assert.Equal(t, qty(5), got[2].Quantity)

	// Reservations landed on the items.
	stored, err := f.repo.GetByID(ctx, noExpiry.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(5), stored.Reserved)
	assert.Equal(t, qty(5), stored.Available())
}

func TestAllocate_SingleLotCoversDemand(t *testing.T) {
	f := newAllocatorFixture(t)

	f.addLot(t, "LOT-B", 100, datePtr(2025, 6, 1))
	soon := f.addLot(t, "LOT-A", 100, datePtr(2025, 1, 1))

	got, err := f.allocator.Allocate(context.Background(), f.request(40))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, soon.ID, got[0].StockItemID)
	assert.Equal(t, qty(40), got[0].Quantity)
}

func TestAllocate_ShortfallFailsWhole(t *testing.T) {
	f := newAllocatorFixture(t)
	ctx := context.Background()

	f.addLot(t, "LOT-A", 10, datePtr(2025, 1, 1))
	f.addLot(t, "LOT-B", 5, datePtr(2025, 6, 1))

	got, err := f.allocator.Allocate(ctx, f.request(20))
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, apperror.IsCapacity(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, 20.0, appErr.Details["requested"])
	assert.Equal(t, 15.0, appErr.Details["available"])
}

func TestAllocate_SkipsUnshelvedWhenShelfRequired(t *testing.T) {
	f := newAllocatorFixture(t)
	ctx := context.Background()

	bulk := NewItem(ItemKey{
		ProductID:   f.productID,
		WarehouseID: f.warehouseID,
		LotNumber:   strPtr("LOT-BULK"),
		ExpiryDate:  datePtr(2024, 12, 1),
	})
	require.NoError(t, bulk.Increase(qty(100)))
	require.NoError(t, f.repo.Create(ctx, bulk))

	shelved := f.addLot(t, "LOT-A", 10, datePtr(2025, 1, 1))

	// Shelf required: the unshelved lot is invisible even though it
	// expires sooner.
	got, err := f.allocator.Allocate(ctx, f.request(10))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, shelved.ID, got[0].StockItemID)

	// Without the shelf requirement the bulk lot wins on expiry.
	req := f.request(10)
	req.RequireShelf = false
	got, err = f.allocator.Allocate(ctx, req)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, bulk.ID, got[0].StockItemID)
}

func TestAllocate_SkipsFullyReservedAndBlocked(t *testing.T) {
	f := newAllocatorFixture(t)
	ctx := context.Background()

	tied := f.addLot(t, "LOT-A", 10, datePtr(2025, 1, 1))
	require.NoError(t, tied.Reserve(qty(6)))
	require.NoError(t, tied.Block(qty(4), BlockReasonQuarantine))
	require.NoError(t, f.repo.Update(ctx, tied))

	free := f.addLot(t, "LOT-B", 10, datePtr(2025, 6, 1))

	got, err := f.allocator.Allocate(ctx, f.request(10))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, free.ID, got[0].StockItemID)
}

func TestAllocate_ValidatesRequest(t *testing.T) {
	f := newAllocatorFixture(t)
	ctx := context.Background()

	_, err := f.allocator.Allocate(ctx, AllocationRequest{
		WarehouseID: f.warehouseID,
		ProductID:   f.productID,
		Quantity:    qty(0),
	})
	assert.Error(t, err)

	_, err = f.allocator.Allocate(ctx, AllocationRequest{
		ProductID: f.productID,
		Quantity:  qty(1),
	})
	assert.Error(t, err)
}

func TestAllocate_VariantIsolation(t *testing.T) {
	f := newAllocatorFixture(t)
	ctx := context.Background()

	variant := id.New()
	withVariant := NewItem(ItemKey{
		ProductID:   f.productID,
		VariantID:   &variant,
		WarehouseID: f.warehouseID,
		LotNumber:   strPtr("LOT-V"),
	})
	require.NoError(t, withVariant.Increase(qty(10)))
	require.NoError(t, withVariant.AssignShelf("A-01"))
	require.NoError(t, f.repo.Create(ctx, withVariant))

	f.addLot(t, "LOT-PLAIN", 10, nil)

	req := f.request(10)
	req.VariantID = &variant
	got, err := f.allocator.Allocate(ctx, req)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, withVariant.ID, got[0].StockItemID)
}

func strPtr(s string) *string { return &s }
