// Package transfer provides the Transfer document: goods moving between
// two warehouses through ship and receive events. Stock is reserved at the
// source as Segments, consumed on shipping, and recreated lot-for-lot at
// the destination as segments are received.
package transfer

import (
	"context"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// DocumentType identifies transfers on ledger entries.
const DocumentType = "Transfer"

// Status represents the transfer lifecycle state.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusShipped           Status = "shipped"
	StatusPartiallyReceived Status = "partially_received"
	StatusCompleted         Status = "completed"
	StatusCanceled          Status = "canceled"
)

// Transfer represents an inter-warehouse movement document.
type Transfer struct {
	entity.Document

	SourceWarehouseID id.ID `db:"source_warehouse_id" json:"sourceWarehouseId"`
	DestWarehouseID   id.ID `db:"dest_warehouse_id" json:"destWarehouseId"`

	ExternalRef *string `db:"external_ref" json:"externalRef,omitempty"`

	Status Status `db:"status" json:"status"`

	ShippedAt   *time.Time `db:"shipped_at" json:"shippedAt,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	CanceledAt  *time.Time `db:"canceled_at" json:"canceledAt,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// Line represents one product position with its shipping segments.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID  `db:"product_id" json:"productId"`
	VariantID *id.ID `db:"variant_id" json:"variantId,omitempty"`

	Requested types.Quantity `db:"requested" json:"requested"`

	Segments []Segment `db:"-" json:"segments"`
}

// Segment ties a partial quantity to one source stock item. Before
// shipping it represents a reservation; after shipping it tracks how much
// of the shipped quantity has arrived at the destination.
type Segment struct {
	SegmentID         id.ID          `db:"segment_id" json:"segmentId"`
	SourceStockItemID id.ID          `db:"source_stock_item_id" json:"sourceStockItemId"`
	ShippedQty        types.Quantity `db:"shipped_qty" json:"shippedQty"`
	ReceivedQty       types.Quantity `db:"received_qty" json:"receivedQty"`
}

// RemainingToReceive is the in-transit quantity of the segment.
func (s Segment) RemainingToReceive() types.Quantity {
	return s.ShippedQty - s.ReceivedQty
}

// Segmented sums the line's segment quantities.
func (l Line) Segmented() types.Quantity {
	var total types.Quantity
	for _, s := range l.Segments {
		total += s.ShippedQty
	}
	return total
}

// Remaining is the quantity not yet covered by segments.
func (l Line) Remaining() types.Quantity {
	return l.Requested - l.Segmented()
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
	if l.Segmented() > l.Requested {
		return apperror.NewValidation("segmented quantity exceeds requested").
			WithDetail("field", "segments")
	}
	return nil
}

// New creates a new transfer draft. Source and destination must differ.
func New(sourceWarehouseID, destWarehouseID id.ID) (*Transfer, error) {
	if sourceWarehouseID == destWarehouseID {
		return nil, apperror.NewValidation("source and destination warehouse must differ").
			WithDetail("warehouse_id", sourceWarehouseID.String())
	}
	return &Transfer{
		Document:          entity.NewDocument(),
		SourceWarehouseID: sourceWarehouseID,
		DestWarehouseID:   destWarehouseID,
		Status:            StatusDraft,
		Lines:             make([]Line, 0),
	}, nil
}

func (d *Transfer) requireDraft(operation string) error {
	if d.Status != StatusDraft {
		return apperror.NewInvalidState(DocumentType, string(d.Status), operation)
	}
	return nil
}

// AddLine appends a line. Lines are mutable only while Draft.
func (d *Transfer) AddLine(line Line) error {
	if err := d.requireDraft("add_line"); err != nil {
		return err
	}
	line.Segments = nil
	if err := line.validate(); err != nil {
		return err
	}
	line.LineID = id.New()
	line.LineNo = len(d.Lines) + 1
	d.Lines = append(d.Lines, line)
	d.Touch()
	return nil
}

// RemoveLine deletes the line and renumbers the remainder. Segments must
// be released by the service first.
func (d *Transfer) RemoveLine(lineNo int) error {
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

// SetSegments replaces the line's segments with a fresh allocation result.
func (d *Transfer) SetSegments(lineNo int, segments []Segment) error {
	if err := d.requireDraft("allocate"); err != nil {
		return err
	}
	idx, err := d.lineIndex(lineNo)
	if err != nil {
		return err
	}
	d.Lines[idx].Segments = segments
	if err := d.Lines[idx].validate(); err != nil {
		return err
	}
	d.Touch()
	return nil
}

func (d *Transfer) lineIndex(lineNo int) (int, error) {
	if lineNo < 1 || lineNo > len(d.Lines) {
		return 0, apperror.NewValidation("invalid line number").
			WithDetail("lineNo", lineNo)
	}
	return lineNo - 1, nil
}

// FindSegment locates a segment by id.
func (d *Transfer) FindSegment(segmentID id.ID) (lineIdx, segIdx int, err error) {
	for li := range d.Lines {
		for si := range d.Lines[li].Segments {
			if d.Lines[li].Segments[si].SegmentID == segmentID {
				return li, si, nil
			}
		}
	}
	return 0, 0, apperror.NewNotFound("transfer_segment", segmentID.String())
}

// Validate implements entity.Validatable.
func (d *Transfer) Validate(ctx context.Context) error {
	if err := d.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(d.SourceWarehouseID) || id.IsNil(d.DestWarehouseID) {
		return apperror.NewValidation("source and destination warehouse are required")
	}
	if d.SourceWarehouseID == d.DestWarehouseID {
		return apperror.NewValidation("source and destination warehouse must differ")
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

// CanShip checks the shipping preconditions: at least one line and every
// line fully segmented.
func (d *Transfer) CanShip(ctx context.Context) error {
	if err := d.requireDraft("ship"); err != nil {
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
			return apperror.NewValidation("line is not fully segmented").
				WithDetail("lineNo", i+1).
				WithDetail("remaining", line.Remaining().String())
		}
	}
	return nil
}

// MarkShipped transitions Draft -> Shipped.
func (d *Transfer) MarkShipped() error {
	if err := d.requireDraft("ship"); err != nil {
		return err
	}
	now := time.Now().UTC()
	d.Status = StatusShipped
	d.ShippedAt = &now
	d.Touch()
	return nil
}

// CanReceive reports whether segments may still be received.
func (d *Transfer) CanReceive() error {
	if d.Status != StatusShipped && d.Status != StatusPartiallyReceived {
		return apperror.NewInvalidState(DocumentType, string(d.Status), "receive")
	}
	return nil
}

// RecomputeCompletion settles the status after a segment receipt:
// Completed once nothing remains in transit, PartiallyReceived otherwise.
func (d *Transfer) RecomputeCompletion() {
	for _, line := range d.Lines {
		for _, seg := range line.Segments {
			if !seg.RemainingToReceive().IsZero() {
				d.Status = StatusPartiallyReceived
				return
			}
		}
	}
	now := time.Now().UTC()
	d.Status = StatusCompleted
	d.CompletedAt = &now
}

// Cancel transitions Draft -> Canceled. Idempotent on canceled documents.
func (d *Transfer) Cancel() error {
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
