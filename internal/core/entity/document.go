package entity

import (
	"context"
	"time"

	"stockcore/internal/core/apperror"
)

// Document is the base type for stock documents (Receipt, Issue,
// Transfer, Adjustment). Each document type defines its own status
// machine; the base carries only number, business date and a comment.
type Document struct {
	BaseDocument

	// Number is the document number (auto-generated, unique within type+period)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// Note is an optional user comment
	Note string `db:"note" json:"note,omitempty"`
}

// NewDocument creates a new Document with generated ID and current date.
func NewDocument() Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return nil
}

// IsBackdated checks if document date is in the past.
func (d *Document) IsBackdated() bool {
	return d.Date.Before(time.Now().UTC().Truncate(24 * time.Hour))
}
