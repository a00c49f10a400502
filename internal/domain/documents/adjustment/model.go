// Package adjustment provides the Adjustment document: manual signed
// corrections to on-hand quantities, used for stock-take results, damage
// write-offs and similar events.
package adjustment

import (
	"context"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// DocumentType identifies adjustments on ledger entries.
const DocumentType = "Adjustment"

// Status represents the adjustment lifecycle state.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPosted   Status = "posted"
	StatusCanceled Status = "canceled"
)

// Adjustment represents a stock correction document.
type Adjustment struct {
	entity.Document

	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`
	ReasonCode  string `db:"reason_code" json:"reasonCode"`

	Status Status `db:"status" json:"status"`

	PostedAt   *time.Time `db:"posted_at" json:"postedAt,omitempty"`
	CanceledAt *time.Time `db:"canceled_at" json:"canceledAt,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// Line represents one signed quantity correction.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID  `db:"product_id" json:"productId"`
	VariantID *id.ID `db:"variant_id" json:"variantId,omitempty"`

	LotNumber  *string    `db:"lot_number" json:"lotNumber,omitempty"`
	ExpiryDate *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	// QtyDelta is signed and non-zero: positive found, negative lost.
	QtyDelta types.Quantity `db:"qty_delta" json:"qtyDelta"`
}

func (l Line) validate() error {
	if id.IsNil(l.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}
	if l.QtyDelta.IsZero() {
		return apperror.NewValidation("quantity delta must be non-zero").
			WithDetail("field", "qtyDelta")
	}
	return nil
}

// New creates a new adjustment draft.
func New(warehouseID id.ID, reasonCode string) *Adjustment {
	return &Adjustment{
		Document:    entity.NewDocument(),
		WarehouseID: warehouseID,
		ReasonCode:  reasonCode,
		Status:      StatusDraft,
		Lines:       make([]Line, 0),
	}
}

func (d *Adjustment) requireDraft(operation string) error {
	if d.Status != StatusDraft {
		return apperror.NewInvalidState(DocumentType, string(d.Status), operation)
	}
	return nil
}

// AddLine appends a line. Lines are mutable only while Draft.
func (d *Adjustment) AddLine(line Line) error {
	if err := d.requireDraft("add_line"); err != nil {
		return err
	}
	if err := line.validate(); err != nil {
		return err
	}
	line.LineID = id.New()
	line.LineNo = len(d.Lines) + 1
	d.Lines = append(d.Lines, line)
	d.Touch()
	return nil
}

// UpdateLine replaces the line with the given number.
func (d *Adjustment) UpdateLine(lineNo int, line Line) error {
	if err := d.requireDraft("update_line"); err != nil {
		return err
	}
	idx, err := d.lineIndex(lineNo)
	if err != nil {
		return err
	}
	if err := line.validate(); err != nil {
		return err
	}
	line.LineID = d.Lines[idx].LineID
	line.LineNo = lineNo
	d.Lines[idx] = line
	d.Touch()
	return nil
}

// RemoveLine deletes the line and renumbers the remainder.
func (d *Adjustment) RemoveLine(lineNo int) error {
	if err := d.requireDraft("remove_line"); err != nil {
		return err
	}
	idx, err := d.lineIndex(lineNo)
	if err != nil {
		return err
	}
	d.Lines = append(d.Lines[:idx], d.Lines[idx+1:]...)
	for i := range d.Lines {
		d.Lines[i].LineNo = i + 1
	}
	d.Touch()
	return nil
}

func (d *Adjustment) lineIndex(lineNo int) (int, error) {
	if lineNo < 1 || lineNo > len(d.Lines) {
		return 0, apperror.NewValidation("invalid line number").
			WithDetail("lineNo", lineNo)
	}
	return lineNo - 1, nil
}

// Validate implements entity.Validatable.
func (d *Adjustment) Validate(ctx context.Context) error {
	if err := d.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(d.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	if d.ReasonCode == "" {
		return apperror.NewValidation("reason code is required").
			WithDetail("field", "reasonCode")
	}
	for i, line := range d.Lines {
		if err := line.validate(); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("lineNo", i+1)
			}
			return err
		}
	}
	return nil
}

// CanPost checks the posting preconditions.
func (d *Adjustment) CanPost(ctx context.Context) error {
	if err := d.requireDraft("post"); err != nil {
		return err
	}
	if err := d.Validate(ctx); err != nil {
		return err
	}
	if len(d.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}
	return nil
}

// MarkPosted transitions Draft -> Posted.
func (d *Adjustment) MarkPosted() error {
	if err := d.requireDraft("post"); err != nil {
		return err
	}
	now := time.Now().UTC()
	d.Status = StatusPosted
	d.PostedAt = &now
	d.Touch()
	return nil
}

// Cancel transitions Draft -> Canceled. Idempotent on canceled documents.
func (d *Adjustment) Cancel() error {
	if d.Status == StatusCanceled {
		return nil
	}
	if err := d.requireDraft("cancel"); err != nil {
		return err
	}
	now := time.Now().UTC()
	d.Status = StatusCanceled
	d.CanceledAt = &now
	d.Touch()
	return nil
}
