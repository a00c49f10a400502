package stock

import (
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// MovementType tags every ledger entry with the business reason for the
// quantity change.
type MovementType string

const (
	MovementReceipt         MovementType = "receipt"
	MovementIssue           MovementType = "issue"
	MovementTransferIn      MovementType = "transfer_in"
	MovementTransferOut     MovementType = "transfer_out"
	MovementAdjustmentPlus  MovementType = "adjustment_plus"
	MovementAdjustmentMinus MovementType = "adjustment_minus"
)

// Inbound reports whether the movement type increases on-hand quantity.
func (m MovementType) Inbound() bool {
	switch m {
	case MovementReceipt, MovementTransferIn, MovementAdjustmentPlus:
		return true
	}
	return false
}

// Valid reports whether m is a known movement type.
func (m MovementType) Valid() bool {
	switch m {
	case MovementReceipt, MovementIssue, MovementTransferIn,
		MovementTransferOut, MovementAdjustmentPlus, MovementAdjustmentMinus:
		return true
	}
	return false
}

// LedgerEntry is one immutable quantity delta with full provenance.
// Entries are written once at posting time and never updated or deleted;
// the repository interface exposes no mutation path.
type LedgerEntry struct {
	ID id.ID `db:"id" json:"id"`

	// Denormalized item identity for reporting queries that do not join.
	ProductID   id.ID      `db:"product_id" json:"productId"`
	VariantID   *id.ID     `db:"variant_id" json:"variantId,omitempty"`
	WarehouseID id.ID      `db:"warehouse_id" json:"warehouseId"`
	LotNumber   *string    `db:"lot_number" json:"lotNumber,omitempty"`
	ExpiryDate  *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	StockItemID id.ID `db:"stock_item_id" json:"stockItemId"`

	// Quantity is signed: positive for inbound movement types, negative
	// for outbound. The constructor enforces the polarity.
	Quantity types.Quantity `db:"quantity" json:"quantity"`
	Movement MovementType   `db:"movement" json:"movement"`

	UnitCost *types.Money `db:"unit_cost" json:"unitCost,omitempty"`

	// Originating document reference.
	DocumentType string `db:"document_type" json:"documentType"`
	DocumentID   id.ID  `db:"document_id" json:"documentId"`
	LineID       *id.ID `db:"line_id" json:"lineId,omitempty"`

	Note *string `db:"note" json:"note,omitempty"`

	RecordedAt time.Time `db:"recorded_at" json:"recordedAt"`
}

// NewLedgerEntry builds an entry for the given item and movement. qty is the
// positive magnitude; the sign is applied from the movement type so the
// polarity invariant holds by construction.
func NewLedgerEntry(item *Item, movement MovementType, qty types.Quantity, docType string, docID id.ID, lineID *id.ID) (LedgerEntry, error) {
	if !movement.Valid() {
		return LedgerEntry{}, apperror.NewValidation("unknown movement type").
			WithDetail("movement", string(movement))
	}
	if !qty.IsPositive() {
		return LedgerEntry{}, apperror.NewValidation("ledger quantity must be positive").
			WithDetail("quantity", qty.String())
	}
	if docType == "" || id.IsNil(docID) {
		return LedgerEntry{}, apperror.NewValidation("document reference is required")
	}

	signed := qty
	if !movement.Inbound() {
		signed = qty.Neg()
	}

	return LedgerEntry{
		ID:           id.New(),
		ProductID:    item.ProductID,
		VariantID:    item.VariantID,
		WarehouseID:  item.WarehouseID,
		LotNumber:    item.LotNumber,
		ExpiryDate:   item.ExpiryDate,
		StockItemID:  item.ID,
		Quantity:     signed,
		Movement:     movement,
		DocumentType: docType,
		DocumentID:   docID,
		LineID:       lineID,
		RecordedAt:   time.Now().UTC(),
	}, nil
}

// WithUnitCost attaches the best-known unit cost to the entry.
func (e LedgerEntry) WithUnitCost(cost *types.Money) LedgerEntry {
	e.UnitCost = cost
	return e
}

// WithNote attaches a free-form note to the entry.
func (e LedgerEntry) WithNote(note string) LedgerEntry {
	if note != "" {
		e.Note = &note
	}
	return e
}

// CheckPolarity verifies the sign matches the movement type. Used as a
// write-path guard in the repository.
func (e LedgerEntry) CheckPolarity() error {
	if e.Quantity.IsZero() {
		return apperror.NewValidation("ledger quantity must be non-zero")
	}
	if e.Movement.Inbound() != e.Quantity.IsPositive() {
		return apperror.NewValidation("ledger quantity sign does not match movement type").
			WithDetail("movement", string(e.Movement)).
			WithDetail("quantity", e.Quantity.String())
	}
	return nil
}
