// Package receipt provides the Receipt document: goods arriving at a
// warehouse through a two-stage quarantine flow. Receiving puts the stock
// on hand but blocked; approval releases it for shelving and sale.
package receipt

import (
	"context"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// DocumentType identifies receipts on ledger entries.
const DocumentType = "Receipt"

// Status represents the receipt lifecycle state.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusReceived Status = "received"
	StatusApproved Status = "approved"
	StatusCanceled Status = "canceled"
)

// Receipt represents an inbound goods document.
type Receipt struct {
	entity.Document

	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`
	Reason      string `db:"reason" json:"reason"`

	// ExternalRef is the supplier's document reference.
	ExternalRef *string `db:"external_ref" json:"externalRef,omitempty"`

	Status Status `db:"status" json:"status"`

	ReceivedAt *time.Time `db:"received_at" json:"receivedAt,omitempty"`
	ApprovedAt *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	CanceledAt *time.Time `db:"canceled_at" json:"canceledAt,omitempty"`

	// Table part: received goods
	Lines []Line `db:"-" json:"lines"`
}

// Line represents one received product position.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID  `db:"product_id" json:"productId"`
	VariantID *id.ID `db:"variant_id" json:"variantId,omitempty"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`

	LotNumber  *string    `db:"lot_number" json:"lotNumber,omitempty"`
	ExpiryDate *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	UnitCost *types.Money `db:"unit_cost" json:"unitCost,omitempty"`
}

// New creates a new receipt draft.
func New(warehouseID id.ID, reason string) *Receipt {
	return &Receipt{
		Document:    entity.NewDocument(),
		WarehouseID: warehouseID,
		Reason:      reason,
		Status:      StatusDraft,
		Lines:       make([]Line, 0),
	}
}

func (r *Receipt) requireDraft(operation string) error {
	if r.Status != StatusDraft {
		return apperror.NewInvalidState(DocumentType, string(r.Status), operation)
	}
	return nil
}

// AddLine appends a line. Lines are mutable only while Draft.
func (r *Receipt) AddLine(line Line) error {
	if err := r.requireDraft("add_line"); err != nil {
		return err
	}
	if err := line.validate(); err != nil {
		return err
	}
	line.LineID = id.New()
	line.LineNo = len(r.Lines) + 1
	r.Lines = append(r.Lines, line)
	r.Touch()
	return nil
}

// UpdateLine replaces the line with the given number.
func (r *Receipt) UpdateLine(lineNo int, line Line) error {
	if err := r.requireDraft("update_line"); err != nil {
		return err
	}
	idx, err := r.lineIndex(lineNo)
	if err != nil {
		return err
	}
	if err := line.validate(); err != nil {
		return err
	}
	line.LineID = r.Lines[idx].LineID
	line.LineNo = lineNo
	r.Lines[idx] = line
	r.Touch()
	return nil
}

// RemoveLine deletes the line and renumbers the remainder.
func (r *Receipt) RemoveLine(lineNo int) error {
	if err := r.requireDraft("remove_line"); err != nil {
		return err
	}
	idx, err := r.lineIndex(lineNo)
	if err != nil {
		return err
	}
	r.Lines = append(r.Lines[:idx], r.Lines[idx+1:]...)
	for i := range r.Lines {
		r.Lines[i].LineNo = i + 1
	}
	r.Touch()
	return nil
}

func (r *Receipt) lineIndex(lineNo int) (int, error) {
	if lineNo < 1 || lineNo > len(r.Lines) {
		return 0, apperror.NewValidation("invalid line number").
			WithDetail("lineNo", lineNo)
	}
	return lineNo - 1, nil
}

func (l Line) validate() error {
	if id.IsNil(l.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}
	if !l.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}
	if l.ExpiryDate != nil && l.LotNumber == nil {
		return apperror.NewValidation("expiry date requires a lot number").
			WithDetail("field", "expiryDate")
	}
	return nil
}

// Validate implements entity.Validatable.
func (r *Receipt) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(r.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	if r.Reason == "" {
		return apperror.NewValidation("reason is required").
			WithDetail("field", "reason")
	}
	for i, line := range r.Lines {
		if err := line.validate(); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("lineNo", i+1)
			}
			return err
		}
	}
	return nil
}

// CanReceive checks the receive preconditions.
func (r *Receipt) CanReceive(ctx context.Context) error {
	if err := r.requireDraft("receive"); err != nil {
		return err
	}
	if err := r.Validate(ctx); err != nil {
		return err
	}
	if len(r.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}
	return nil
}

// MarkReceived transitions Draft -> Received.
func (r *Receipt) MarkReceived() error {
	if err := r.requireDraft("receive"); err != nil {
		return err
	}
	now := time.Now().UTC()
	r.Status = StatusReceived
	r.ReceivedAt = &now
	r.Touch()
	return nil
}

// MarkApproved transitions Received -> Approved.
func (r *Receipt) MarkApproved() error {
	if r.Status != StatusReceived {
		return apperror.NewInvalidState(DocumentType, string(r.Status), "approve")
	}
	now := time.Now().UTC()
	r.Status = StatusApproved
	r.ApprovedAt = &now
	r.Touch()
	return nil
}

// Cancel transitions Draft -> Canceled. Canceling an already canceled
// receipt is a no-op; received or approved receipts cannot be canceled.
func (r *Receipt) Cancel() error {
	if r.Status == StatusCanceled {
		return nil
	}
	if err := r.requireDraft("cancel"); err != nil {
		return err
	}
	now := time.Now().UTC()
	r.Status = StatusCanceled
	r.CanceledAt = &now
	r.Touch()
	return nil
}
