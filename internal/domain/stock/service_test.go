package stock

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

func newStockService() (*Service, *MemoryItemRepository, *MemoryLedgerRepository) {
	items := NewMemoryItemRepository()
	ledger := NewMemoryLedgerRepository()
	return NewService(items, ledger), items, ledger
}

func TestFindOrCreate_CreatesZeroItemOnce(t *testing.T) {
	svc, _, _ := newStockService()
	ctx := context.Background()

	key := ItemKey{ProductID: id.New(), WarehouseID: id.New()}

	first, err := svc.FindOrCreate(ctx, key)
	require.NoError(t, err)
	assert.True(t, first.OnHand.IsZero())
	assert.True(t, first.Available().IsZero())

	second, err := svc.FindOrCreate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestFindOrCreate_DistinctLotsAreDistinctItems(t *testing.T) {
	svc, _, _ := newStockService()
	ctx := context.Background()

	productID := id.New()
	warehouseID := id.New()
	lotA, lotB := "LOT-A", "LOT-B"

	a, err := svc.FindOrCreate(ctx, ItemKey{ProductID: productID, WarehouseID: warehouseID, LotNumber: &lotA})
	require.NoError(t, err)
	b, err := svc.FindOrCreate(ctx, ItemKey{ProductID: productID, WarehouseID: warehouseID, LotNumber: &lotB})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestFindOrCreate_ValidatesKey(t *testing.T) {
	svc, _, _ := newStockService()

	_, err := svc.FindOrCreate(context.Background(), ItemKey{})
	require.Error(t, err)
}

func TestAppend_RejectsPolarityViolation(t *testing.T) {
	svc, _, ledger := newStockService()
	ctx := context.Background()

	item := NewItem(ItemKey{ProductID: id.New(), WarehouseID: id.New()})

	entry, err := NewLedgerEntry(item, MovementReceipt, types.NewQuantityFromInt(5), "receipt", id.New(), nil)
	require.NoError(t, err)

	// Flip the sign after construction; the write boundary must catch it.
	entry.Quantity = types.NewQuantityFromInt(-5)

	err = svc.Append(ctx, []LedgerEntry{entry})
	require.Error(t, err)

	stored, err := ledger.List(ctx, LedgerFilter{})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestAppend_EmptySliceIsNoop(t *testing.T) {
	svc, _, _ := newStockService()
	require.NoError(t, svc.Append(context.Background(), nil))
}

func TestSave_BumpsVersionThroughRepo(t *testing.T) {
	svc, _, _ := newStockService()
	ctx := context.Background()

	item, err := svc.FindOrCreate(ctx, ItemKey{ProductID: id.New(), WarehouseID: id.New()})
	require.NoError(t, err)

	require.NoError(t, item.Increase(types.NewQuantityFromInt(10)))
	require.NoError(t, svc.Save(ctx, item))

	reloaded, err := svc.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(10), reloaded.OnHand)
	assert.Equal(t, item.Version, reloaded.Version)
}

func TestSave_StaleVersionConflicts(t *testing.T) {
	svc, _, _ := newStockService()
	ctx := context.Background()

	item, err := svc.FindOrCreate(ctx, ItemKey{ProductID: id.New(), WarehouseID: id.New()})
	require.NoError(t, err)

	stale := *item

	require.NoError(t, item.Increase(types.NewQuantityFromInt(10)))
	require.NoError(t, svc.Save(ctx, item))

	require.NoError(t, stale.Increase(types.NewQuantityFromInt(3)))
	err = svc.Save(ctx, &stale)
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrentModification(err))
}

func TestAssignShelf_MakesItemAllocatable(t *testing.T) {
	svc, _, _ := newStockService()
	ctx := context.Background()

	item, err := svc.FindOrCreate(ctx, ItemKey{ProductID: id.New(), WarehouseID: id.New()})
	require.NoError(t, err)
	require.False(t, item.IsShelved())

	updated, err := svc.AssignShelf(ctx, item.ID, "A-01-03")
	require.NoError(t, err)
	require.True(t, updated.IsShelved())
	require.NotNil(t, updated.Shelf)
	assert.Equal(t, "A-01-03", *updated.Shelf)

	moved, err := svc.AssignShelf(ctx, item.ID, "B-02-01")
	require.NoError(t, err)
	assert.Equal(t, "B-02-01", *moved.Shelf)
}

func TestAssignShelf_UnknownItem(t *testing.T) {
	svc, _, _ := newStockService()

	_, err := svc.AssignShelf(context.Background(), id.New(), "A-01-01")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

// raceItemRepository simulates losing a first-posting race: the initial
// lookup misses even though a concurrent transaction has already inserted
// the row, so Create hits the unique key.
type raceItemRepository struct {
	*MemoryItemRepository
	missed bool
}

func (r *raceItemRepository) GetByKey(ctx context.Context, key ItemKey) (*Item, error) {
	if !r.missed {
		r.missed = true
		return nil, apperror.NewNotFound("stock_item", key.ProductID.String())
	}
	return r.MemoryItemRepository.GetByKey(ctx, key)
}

func TestFindOrCreate_LostRaceResolvesToExistingItem(t *testing.T) {
	inner := NewMemoryItemRepository()
	repo := &raceItemRepository{MemoryItemRepository: inner}
	svc := NewService(repo, NewMemoryLedgerRepository())
	ctx := context.Background()

	key := ItemKey{ProductID: id.New(), WarehouseID: id.New()}
	winner := NewItem(key)
	require.NoError(t, inner.Create(ctx, winner))

	item, err := svc.FindOrCreate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, item.ID)
	assert.True(t, repo.missed)
}

// abortedItemRepository mimics the Postgres path: the insert reports a
// conflict and the transaction is no longer readable afterwards.
type abortedItemRepository struct {
	*MemoryItemRepository
	looked bool
}

func (r *abortedItemRepository) GetByKey(ctx context.Context, key ItemKey) (*Item, error) {
	if !r.looked {
		r.looked = true
		return nil, apperror.NewNotFound("stock_item", key.ProductID.String())
	}
	return nil, fmt.Errorf("current transaction is aborted")
}

func (r *abortedItemRepository) Create(ctx context.Context, item *Item) error {
	return apperror.NewConcurrentModification("stk_items", item.ID.String())
}

func TestFindOrCreate_LostRaceSurfacesRetryableConflict(t *testing.T) {
	repo := &abortedItemRepository{MemoryItemRepository: NewMemoryItemRepository()}
	svc := NewService(repo, NewMemoryLedgerRepository())

	key := ItemKey{ProductID: id.New(), WarehouseID: id.New()}
	_, err := svc.FindOrCreate(context.Background(), key)
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrentModification(err))
}
