package stock

import (
	"context"
	"fmt"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/pkg/logger"
)

// Service coordinates stock item persistence and ledger writes for the
// document workflows. Transactions are managed by the caller (the posting
// path of each document service).
type Service struct {
	items  ItemRepository
	ledger LedgerRepository
}

// NewService creates a new stock service.
func NewService(items ItemRepository, ledger LedgerRepository) *Service {
	return &Service{
		items:  items,
		ledger: ledger,
	}
}

// Items exposes the item repository for read models.
func (s *Service) Items() ItemRepository { return s.items }

// Ledger exposes the ledger repository for read models.
func (s *Service) Ledger() LedgerRepository { return s.ledger }

// GetByID retrieves a stock item.
func (s *Service) GetByID(ctx context.Context, itemID id.ID) (*Item, error) {
	return s.items.GetByID(ctx, itemID)
}

// FindOrCreate returns the item for the identity tuple, creating a
// zero-quantity row on first use. Items are never deleted; quantities
// settle at zero instead.
func (s *Service) FindOrCreate(ctx context.Context, key ItemKey) (*Item, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	item, err := s.items.GetByKey(ctx, key)
	if err == nil {
		return item, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("find stock item: %w", err)
	}

	item = NewItem(key)
	if err := s.items.Create(ctx, item); err != nil {
		// Another transaction created this key first. Use its row when it
		// is still readable; otherwise surface a conflict so the posting
		// retry loop replays the attempt against the existing item.
		if apperror.IsDuplicate(err) || apperror.IsConcurrentModification(err) {
			existing, lookupErr := s.items.GetByKey(ctx, key)
			if lookupErr == nil {
				return existing, nil
			}
			return nil, apperror.NewConcurrentModification("stock_item", key.ProductID.String()).WithCause(err)
		}
		return nil, fmt.Errorf("create stock item: %w", err)
	}

	logger.Debug(ctx, "stock item created",
		"stock_item_id", item.ID,
		"product_id", key.ProductID,
		"warehouse_id", key.WarehouseID,
	)
	return item, nil
}

// Save persists a mutated item under the optimistic version check.
func (s *Service) Save(ctx context.Context, item *Item) error {
	if err := item.Validate(ctx); err != nil {
		return err
	}
	return s.items.Update(ctx, item)
}

// Append writes ledger entries after re-checking the polarity invariant.
func (s *Service) Append(ctx context.Context, entries []LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		if err := entries[i].CheckPolarity(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	if err := s.ledger.Append(ctx, entries); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	return nil
}

// AssignShelf puts an item on a storage bin, making it sellable.
func (s *Service) AssignShelf(ctx context.Context, itemID id.ID, shelf string) (*Item, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := item.AssignShelf(shelf); err != nil {
		return nil, err
	}
	if err := s.items.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}
