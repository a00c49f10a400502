package stock

import (
	"context"
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// ItemRepository defines persistence for stock items. Update must apply the
// optimistic version check and return a concurrency error when the stored
// version differs from the loaded one.
type ItemRepository interface {
	// Create inserts a new item (version 1).
	Create(ctx context.Context, item *Item) error

	// GetByID retrieves an item by surrogate id.
	GetByID(ctx context.Context, itemID id.ID) (*Item, error)

	// GetByKey retrieves the unshelved item for an identity tuple.
	// Documents always post against the row with no shelf; once a row is
	// shelved it becomes sellable and the next posting forks a fresh
	// unshelved row for the same tuple.
	GetByKey(ctx context.Context, key ItemKey) (*Item, error)

	// Update persists the item. Guarded operations bump the in-memory
	// version, so the write succeeds only when the stored version is still
	// below the one being written.
	Update(ctx context.Context, item *Item) error

	// ListCandidates returns allocation candidates with available > 0,
	// ordered by expiry date ascending with NULL expiries last, ties
	// broken by item id for determinism.
	ListCandidates(ctx context.Context, f CandidateFilter) ([]*Item, error)

	// List returns items for reporting reads.
	List(ctx context.Context, f ItemFilter) ([]*Item, error)
}

// CandidateFilter selects FEFO allocation candidates.
type CandidateFilter struct {
	WarehouseID id.ID
	ProductID   id.ID
	VariantID   *id.ID

	// RequireShelf restricts to shelved items; issues sell only shelved
	// stock while transfers may move bulk.
	RequireShelf bool
}

// ItemFilter selects items for read models.
type ItemFilter struct {
	WarehouseID  *id.ID
	ProductID    *id.ID
	VariantID    *id.ID
	OnlyNonZero  bool
	OnlyBlocked  bool
	Limit        int
	Offset       int
}

// LedgerRepository is the append-only access layer for the stock ledger.
// There is intentionally no update or delete operation.
type LedgerRepository interface {
	// Append inserts entries; polarity is re-checked at the write boundary.
	Append(ctx context.Context, entries []LedgerEntry) error

	// List returns entries matching the filter, newest first.
	List(ctx context.Context, f LedgerFilter) ([]LedgerEntry, error)

	// Turnover sums inbound and outbound quantities for the filter period.
	Turnover(ctx context.Context, f TurnoverFilter) (Turnover, error)
}

// LedgerFilter selects ledger entries for history reads.
type LedgerFilter struct {
	ProductID   *id.ID
	VariantID   *id.ID
	WarehouseID *id.ID
	Movement    *MovementType
	DocumentID  *id.ID
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// TurnoverFilter bounds a turnover aggregation.
type TurnoverFilter struct {
	WarehouseID *id.ID
	ProductID   *id.ID
	From        time.Time
	To          time.Time
}

// Turnover holds inbound/outbound totals for a period.
type Turnover struct {
	WarehouseID    *id.ID         `json:"warehouseId,omitempty"`
	ProductID      *id.ID         `json:"productId,omitempty"`
	OpeningBalance types.Quantity `json:"openingBalance"`
	Inbound        types.Quantity `json:"inbound"`
	Outbound       types.Quantity `json:"outbound"`
	ClosingBalance types.Quantity `json:"closingBalance"`
}
