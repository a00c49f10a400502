// Package issue provides the Issue document: goods leaving a warehouse
// against FEFO allocations. Only shelved stock is sellable; allocation and
// posting are separate steps so a picker can review what was reserved.
package issue

import (
	"context"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/stock"
)

// DocumentType identifies issues on ledger entries.
const DocumentType = "Issue"

// Status represents the issue lifecycle state.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPosted   Status = "posted"
	StatusCanceled Status = "canceled"
)

// Issue represents an outbound goods document.
type Issue struct {
	entity.Document

	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// ExternalRef is the order or shipment reference.
	ExternalRef *string `db:"external_ref" json:"externalRef,omitempty"`

	Status Status `db:"status" json:"status"`

	PostedAt   *time.Time `db:"posted_at" json:"postedAt,omitempty"`
	CanceledAt *time.Time `db:"canceled_at" json:"canceledAt,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// Line represents one requested product position with its allocations.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID  `db:"product_id" json:"productId"`
	VariantID *id.ID `db:"variant_id" json:"variantId,omitempty"`

	Requested types.Quantity `db:"requested" json:"requested"`

	// Allocations reserve partial quantities on specific stock items.
	// Their sum never exceeds Requested.
	Allocations []stock.Reservation `db:"-" json:"allocations"`
}

// Allocated sums the line's reservations.
func (l Line) Allocated() types.Quantity {
	var total types.Quantity
	for _, a := range l.Allocations {
		total += a.Quantity
	}
	return total
}

// Remaining is the quantity still waiting for an allocation.
func (l Line) Remaining() types.Quantity {
	return l.Requested - l.Allocated()
}

func (l Line) validate() error {
	if id.IsNil(l.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}
	if !l.Requested.IsPositive() {
		return apperror.NewValidation("requested quantity must be positive").
			WithDetail("field", "requested")
	}
	if l.Allocated() > l.Requested {
		return apperror.NewValidation("allocated quantity exceeds requested").
			WithDetail("field", "allocations")
	}
	return nil
}

// New creates a new issue draft.
func New(warehouseID id.ID) *Issue {
	return &Issue{
		Document:    entity.NewDocument(),
		WarehouseID: warehouseID,
		Status:      StatusDraft,
		Lines:       make([]Line, 0),
	}
}

func (d *Issue) requireDraft(operation string) error {
	if d.Status != StatusDraft {
		return apperror.NewInvalidState(DocumentType, string(d.Status), operation)
	}
	return nil
}

// AddLine appends a line. Lines are mutable only while Draft.
func (d *Issue) AddLine(line Line) error {
	if err := d.requireDraft("add_line"); err != nil {
		return err
	}
	line.Allocations = nil
	if err := line.validate(); err != nil {
		return err
	}
	line.LineID = id.New()
	line.LineNo = len(d.Lines) + 1
	d.Lines = append(d.Lines, line)
	d.Touch()
	return nil
}

// UpdateLine replaces the line's product and requested quantity. Existing
// allocations must be released by the service before calling this.
func (d *Issue) UpdateLine(lineNo int, line Line) error {
	if err := d.requireDraft("update_line"); err != nil {
		return err
	}
	idx, err := d.lineIndex(lineNo)
	if err != nil {
		return err
	}
	line.Allocations = nil
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
func (d *Issue) RemoveLine(lineNo int) error {
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

// SetAllocations replaces the line's allocations with a fresh FEFO result.
func (d *Issue) SetAllocations(lineNo int, allocations []stock.Reservation) error {
	if err := d.requireDraft("allocate"); err != nil {
		return err
	}
	idx, err := d.lineIndex(lineNo)
	if err != nil {
		return err
	}
	d.Lines[idx].Allocations = allocations
	if err := d.Lines[idx].validate(); err != nil {
		return err
	}
	d.Touch()
	return nil
}

func (d *Issue) lineIndex(lineNo int) (int, error) {
	if lineNo < 1 || lineNo > len(d.Lines) {
		return 0, apperror.NewValidation("invalid line number").
			WithDetail("lineNo", lineNo)
	}
	return lineNo - 1, nil
}

// Validate implements entity.Validatable.
func (d *Issue) Validate(ctx context.Context) error {
	if err := d.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(d.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
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

// CanPost checks the posting preconditions: at least one line and every
// line fully allocated.
func (d *Issue) CanPost(ctx context.Context) error {
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
	for i, line := range d.Lines {
		if !line.Remaining().IsZero() {
			return apperror.NewValidation("line is not fully allocated").
				WithDetail("lineNo", i+1).
				WithDetail("remaining", line.Remaining().String())
		}
	}
	return nil
}

// MarkPosted transitions Draft -> Posted.
func (d *Issue) MarkPosted() error {
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
func (d *Issue) Cancel() error {
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
