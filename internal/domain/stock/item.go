// Package stock provides the stock item aggregate, the append-only ledger
// and the FEFO allocation engine.
package stock

import (
	"context"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// BlockReasonQuarantine marks stock received but not yet approved for sale.
const BlockReasonQuarantine = "quarantine"

// ItemKey is the natural identity of a stock item. One row exists per
// distinct tuple; items are created lazily on first posting and never deleted.
type ItemKey struct {
	ProductID   id.ID      `json:"productId"`
	VariantID   *id.ID     `json:"variantId,omitempty"`
	WarehouseID id.ID      `json:"warehouseId"`
	LotNumber   *string    `json:"lotNumber,omitempty"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
}

// Validate checks the key invariants.
func (k ItemKey) Validate() error {
	if id.IsNil(k.ProductID) {
		return apperror.NewValidation("product is required").WithDetail("field", "productId")
	}
	if id.IsNil(k.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	return nil
}

// Item is the mutable aggregate holding current quantities for one
// (product, variant, warehouse, lot, expiry) tuple. All mutations go through
// the guarded operations below; each bumps the optimistic-locking version.
type Item struct {
	entity.BaseEntity

	ProductID   id.ID      `db:"product_id" json:"productId"`
	VariantID   *id.ID     `db:"variant_id" json:"variantId,omitempty"`
	WarehouseID id.ID      `db:"warehouse_id" json:"warehouseId"`
	LotNumber   *string    `db:"lot_number" json:"lotNumber,omitempty"`
	ExpiryDate  *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	// Shelf is the storage bin assignment; only shelved stock is sellable.
	Shelf *string `db:"shelf" json:"shelf,omitempty"`

	OnHand   types.Quantity `db:"on_hand" json:"onHand"`
	Reserved types.Quantity `db:"reserved" json:"reserved"`
	Blocked  types.Quantity `db:"blocked" json:"blocked"`

	// BlockReason explains why Blocked > 0; cleared when blocked reaches zero.
	BlockReason *string `db:"block_reason" json:"blockReason,omitempty"`

	// LastUnitCost is the unit cost recorded by the most recent receipt.
	// Issue ledger entries carry it as the best-known cost.
	LastUnitCost *types.Money `db:"last_unit_cost" json:"lastUnitCost,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewItem creates a zero-quantity item for the given identity tuple.
func NewItem(key ItemKey) *Item {
	now := time.Now().UTC()
	return &Item{
		BaseEntity:  entity.NewBaseEntity(),
		ProductID:   key.ProductID,
		VariantID:   key.VariantID,
		WarehouseID: key.WarehouseID,
		LotNumber:   key.LotNumber,
		ExpiryDate:  key.ExpiryDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Key returns the item's identity tuple.
func (i *Item) Key() ItemKey {
	return ItemKey{
		ProductID:   i.ProductID,
		VariantID:   i.VariantID,
		WarehouseID: i.WarehouseID,
		LotNumber:   i.LotNumber,
		ExpiryDate:  i.ExpiryDate,
	}
}

// Available is the quantity free for new reservations or direct decrease.
func (i *Item) Available() types.Quantity {
	return i.OnHand - i.Reserved - i.Blocked
}

// IsShelved reports whether the item has a storage bin assigned.
func (i *Item) IsShelved() bool {
	return i.Shelf != nil && *i.Shelf != ""
}

// Validate implements entity.Validatable.
func (i *Item) Validate(ctx context.Context) error {
	if err := i.Key().Validate(); err != nil {
		return err
	}
	if i.OnHand < 0 || i.Reserved < 0 || i.Blocked < 0 {
		return apperror.NewValidation("quantities must be non-negative").
			WithDetail("stock_item_id", i.ID.String())
	}
	if i.Available() < 0 {
		return apperror.NewValidation("available must be non-negative").
			WithDetail("stock_item_id", i.ID.String())
	}
	return nil
}

func (i *Item) touch() {
	i.UpdatedAt = time.Now().UTC()
	i.Touch()
}

func requirePositive(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", qty.String())
	}
	return nil
}

// Increase adds qty to on-hand.
func (i *Item) Increase(qty types.Quantity) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	i.OnHand += qty
	i.touch()
	return nil
}

// Decrease removes qty from on-hand. Fails if qty exceeds available.
func (i *Item) Decrease(qty types.Quantity) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	if qty > i.Available() {
		return apperror.NewInsufficientStock(i.ID.String(), qty.Float64(), i.Available().Float64())
	}
	i.OnHand -= qty
	i.touch()
	return nil
}

// Reserve earmarks qty for a document line. Fails if qty exceeds available.
func (i *Item) Reserve(qty types.Quantity) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	if qty > i.Available() {
		return apperror.NewInsufficientStock(i.ID.String(), qty.Float64(), i.Available().Float64())
	}
	i.Reserved += qty
	i.touch()
	return nil
}

// Release returns qty from reserved back to available.
func (i *Item) Release(qty types.Quantity) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	if qty > i.Reserved {
		return apperror.NewInsufficientReserved(i.ID.String(), qty.Float64(), i.Reserved.Float64())
	}
	i.Reserved -= qty
	i.touch()
	return nil
}

// Consume removes qty from both reserved and on-hand in one step.
// Used when shipping a transfer: the reservation is consumed, not released,
// because the goods physically leave the warehouse.
func (i *Item) Consume(qty types.Quantity) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	if qty > i.Reserved {
		return apperror.NewInsufficientReserved(i.ID.String(), qty.Float64(), i.Reserved.Float64())
	}
	i.Reserved -= qty
	i.OnHand -= qty
	i.touch()
	return nil
}

// Block moves qty from available into the blocked state with a reason.
func (i *Item) Block(qty types.Quantity, reason string) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	if reason == "" {
		return apperror.NewValidation("block reason is required")
	}
	if qty > i.Available() {
		return apperror.NewInsufficientStock(i.ID.String(), qty.Float64(), i.Available().Float64())
	}
	i.Blocked += qty
	i.BlockReason = &reason
	i.touch()
	return nil
}

// Unblock returns qty from blocked to available; clears the reason once
// blocked reaches zero.
func (i *Item) Unblock(qty types.Quantity) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	if qty > i.Blocked {
		return apperror.NewInsufficientBlocked(i.ID.String(), qty.Float64(), i.Blocked.Float64())
	}
	i.Blocked -= qty
	if i.Blocked == 0 {
		i.BlockReason = nil
	}
	i.touch()
	return nil
}

// AssignShelf sets the storage bin, making the item eligible for issue
// allocation.
func (i *Item) AssignShelf(shelf string) error {
	if shelf == "" {
		return apperror.NewValidation("shelf is required")
	}
	i.Shelf = &shelf
	i.touch()
	return nil
}

// RecordUnitCost stores the cost observed by a receipt line.
func (i *Item) RecordUnitCost(cost types.Money) {
	i.LastUnitCost = &cost
	i.touch()
}
