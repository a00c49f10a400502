package stock

import (
	"context"
	"sort"
	"sync"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
)

// MemoryItemRepository is an in-memory ItemRepository with the same
// optimistic-concurrency semantics as the Postgres implementation.
// Use in unit tests to avoid database dependencies.
type MemoryItemRepository struct {
	mu    sync.Mutex
	items map[id.ID]Item

	// UpdateHook runs before each Update; tests inject conflicts with it.
	UpdateHook func(item *Item) error
}

// NewMemoryItemRepository creates an empty in-memory repository.
func NewMemoryItemRepository() *MemoryItemRepository {
	return &MemoryItemRepository{items: make(map[id.ID]Item)}
}

func (r *MemoryItemRepository) Create(ctx context.Context, item *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if sameKey(existing.Key(), item.Key()) && sameOptionalString(existing.Shelf, item.Shelf) {
			return apperror.NewDuplicate("stock_item", "key", item.ProductID.String())
		}
	}
	r.items[item.ID] = *item
	return nil
}

func (r *MemoryItemRepository) GetByID(ctx context.Context, itemID id.ID) (*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok {
		return nil, apperror.NewNotFound("stock_item", itemID.String())
	}
	c := item
	return &c, nil
}

func (r *MemoryItemRepository) GetByKey(ctx context.Context, key ItemKey) (*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if sameKey(item.Key(), key) && item.Shelf == nil {
			c := item
			return &c, nil
		}
	}
	return nil, apperror.NewNotFound("stock_item", key.ProductID.String())
}

func (r *MemoryItemRepository) Update(ctx context.Context, item *Item) error {
	if r.UpdateHook != nil {
		if err := r.UpdateHook(item); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[item.ID]
	if !ok {
		return apperror.NewNotFound("stock_item", item.ID.String())
	}
	if item.Version <= stored.Version {
		return apperror.NewConcurrentModification("stock_item", item.ID.String())
	}
	r.items[item.ID] = *item
	return nil
}

func (r *MemoryItemRepository) ListCandidates(ctx context.Context, f CandidateFilter) ([]*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Item
	for _, item := range r.items {
		if item.WarehouseID != f.WarehouseID || item.ProductID != f.ProductID {
			continue
		}
		if !sameOptionalID(item.VariantID, f.VariantID) {
			continue
		}
		if !item.Available().IsPositive() {
			continue
		}
		if f.RequireShelf && !item.IsShelved() {
			continue
		}
		c := item
		out = append(out, &c)
	}

	sortFEFO(out)
	return out, nil
}

func (r *MemoryItemRepository) List(ctx context.Context, f ItemFilter) ([]*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Item
	for _, item := range r.items {
		if f.WarehouseID != nil && item.WarehouseID != *f.WarehouseID {
			continue
		}
		if f.ProductID != nil && item.ProductID != *f.ProductID {
			continue
		}
		if f.VariantID != nil && !sameOptionalID(item.VariantID, f.VariantID) {
			continue
		}
		if f.OnlyNonZero && item.OnHand.IsZero() && item.Reserved.IsZero() && item.Blocked.IsZero() {
			continue
		}
		if f.OnlyBlocked && !item.Blocked.IsPositive() {
			continue
		}
		c := item
		out = append(out, &c)
	}

	sort.Slice(out, func(a, b int) bool {
		return out[a].ID.String() < out[b].ID.String()
	})
	return out, nil
}

// sortFEFO orders by expiry date ascending, items without expiry last,
// ties broken by id (UUIDv7, so effectively creation order).
func sortFEFO(items []*Item) {
	sort.Slice(items, func(a, b int) bool {
		ea, eb := items[a].ExpiryDate, items[b].ExpiryDate
		switch {
		case ea == nil && eb == nil:
			return items[a].ID.String() < items[b].ID.String()
		case ea == nil:
			return false
		case eb == nil:
			return true
		case !ea.Equal(*eb):
			return ea.Before(*eb)
		default:
			return items[a].ID.String() < items[b].ID.String()
		}
	})
}

func sameKey(a, b ItemKey) bool {
	return a.ProductID == b.ProductID &&
		a.WarehouseID == b.WarehouseID &&
		sameOptionalID(a.VariantID, b.VariantID) &&
		sameOptionalString(a.LotNumber, b.LotNumber) &&
		sameOptionalTime(a.ExpiryDate, b.ExpiryDate)
}

func sameOptionalID(a, b *id.ID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameOptionalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameOptionalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// MemoryLedgerRepository is an in-memory LedgerRepository for tests.
type MemoryLedgerRepository struct {
	mu      sync.Mutex
	entries []LedgerEntry
}

// NewMemoryLedgerRepository creates an empty in-memory ledger.
func NewMemoryLedgerRepository() *MemoryLedgerRepository {
	return &MemoryLedgerRepository{}
}

func (r *MemoryLedgerRepository) Append(ctx context.Context, entries []LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *MemoryLedgerRepository) List(ctx context.Context, f LedgerFilter) ([]LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []LedgerEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if f.ProductID != nil && e.ProductID != *f.ProductID {
			continue
		}
		if f.VariantID != nil && !sameOptionalID(e.VariantID, f.VariantID) {
			continue
		}
		if f.WarehouseID != nil && e.WarehouseID != *f.WarehouseID {
			continue
		}
		if f.Movement != nil && e.Movement != *f.Movement {
			continue
		}
		if f.DocumentID != nil && e.DocumentID != *f.DocumentID {
			continue
		}
		if f.From != nil && e.RecordedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !e.RecordedAt.Before(*f.To) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *MemoryLedgerRepository) Turnover(ctx context.Context, f TurnoverFilter) (Turnover, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := Turnover{WarehouseID: f.WarehouseID, ProductID: f.ProductID}
	for _, e := range r.entries {
		if f.WarehouseID != nil && e.WarehouseID != *f.WarehouseID {
			continue
		}
		if f.ProductID != nil && e.ProductID != *f.ProductID {
			continue
		}
		switch {
		case e.RecordedAt.Before(f.From):
			result.OpeningBalance += e.Quantity
		case e.RecordedAt.Before(f.To):
			if e.Quantity.IsPositive() {
				result.Inbound += e.Quantity
			} else {
				result.Outbound += e.Quantity.Neg()
			}
		}
	}
	result.ClosingBalance = result.OpeningBalance + result.Inbound - result.Outbound
	return result, nil
}

// Ensure compile-time interface compliance.
var (
	_ ItemRepository   = (*MemoryItemRepository)(nil)
	_ LedgerRepository = (*MemoryLedgerRepository)(nil)
)
