package transfer

import (
	"context"
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/domain"
)

// Repository defines persistence for transfer documents. Segments are
// stored with the lines and travel through SaveLines.
type Repository interface {
	Create(ctx context.Context, doc *Transfer) error
	GetByID(ctx context.Context, docID id.ID) (*Transfer, error)
	GetByNumber(ctx context.Context, number string) (*Transfer, error)
	Update(ctx context.Context, doc *Transfer) error
	Delete(ctx context.Context, docID id.ID) error

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Transfer], error)
}

// ListFilter for filtering transfers.
type ListFilter struct {
	domain.ListFilter

	SourceWarehouseID *id.ID
	DestWarehouseID   *id.ID
	Status            *Status
	DateFrom          *time.Time
	DateTo            *time.Time
}
