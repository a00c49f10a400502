package stock

import (
	"context"
	"fmt"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/pkg/logger"
)

// Reservation links a document line to a specific stock item for a partial
// quantity. Issues call it an allocation, transfers a segment; both share
// this shape at the engine level.
type Reservation struct {
	StockItemID id.ID          `json:"stockItemId"`
	Quantity    types.Quantity `json:"quantity"`
}

// AllocationRequest describes one demand to satisfy.
type AllocationRequest struct {
	WarehouseID id.ID
	ProductID   id.ID
	VariantID   *id.ID
	Quantity    types.Quantity

	// RequireShelf restricts candidates to shelved stock (issue allocation).
	RequireShelf bool
}

// Allocator is the stateless FEFO engine: it selects candidate stock items
// ordered by expiry (soonest first, no expiry last) and greedily reserves
// until the demand is covered. A shortfall fails the whole allocation; the
// enclosing transaction rolls back any reservations already taken.
type Allocator struct {
	items ItemRepository
}

// NewAllocator creates a new FEFO allocator.
func NewAllocator(items ItemRepository) *Allocator {
	return &Allocator{items: items}
}

// Allocate reserves req.Quantity across candidate items and returns the
// reservations taken, in FEFO order. Must run inside a transaction.
func (a *Allocator) Allocate(ctx context.Context, req AllocationRequest) ([]Reservation, error) {
	if !req.Quantity.IsPositive() {
		return nil, apperror.NewValidation("allocation quantity must be positive").
			WithDetail("quantity", req.Quantity.String())
	}
	if id.IsNil(req.WarehouseID) || id.IsNil(req.ProductID) {
		return nil, apperror.NewValidation("warehouse and product are required")
	}

	candidates, err := a.items.ListCandidates(ctx, CandidateFilter{
		WarehouseID:  req.WarehouseID,
		ProductID:    req.ProductID,
		VariantID:    req.VariantID,
		RequireShelf: req.RequireShelf,
	})
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	remaining := req.Quantity
	reservations := make([]Reservation, 0, len(candidates))

	for _, item := range candidates {
		if remaining.IsZero() {
			break
		}
		take := item.Available().Min(remaining)
		if !take.IsPositive() {
			continue
		}
		if err := item.Reserve(take); err != nil {
			return nil, err
		}
		if err := a.items.Update(ctx, item); err != nil {
			return nil, fmt.Errorf("reserve on %s: %w", item.ID, err)
		}
		reservations = append(reservations, Reservation{
			StockItemID: item.ID,
			Quantity:    take,
		})
		remaining -= take
	}

	if remaining.IsPositive() {
		// No partial result: the caller's transaction rollback undoes the
		// reservations taken above.
		return nil, apperror.NewInsufficientStock(
			req.ProductID.String(),
			req.Quantity.Float64(),
			(req.Quantity - remaining).Float64(),
		).WithDetail("warehouse_id", req.WarehouseID.String())
	}

	logger.Debug(ctx, "fefo allocation complete",
		"product_id", req.ProductID,
		"warehouse_id", req.WarehouseID,
		"quantity", req.Quantity,
		"reservations", len(reservations),
	)
	return reservations, nil
}
