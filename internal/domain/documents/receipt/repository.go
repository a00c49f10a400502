package receipt

import (
	"context"
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/domain"
)

// Repository defines persistence for receipt documents.
type Repository interface {
	Create(ctx context.Context, doc *Receipt) error
	GetByID(ctx context.Context, docID id.ID) (*Receipt, error)
	GetByNumber(ctx context.Context, number string) (*Receipt, error)
	Update(ctx context.Context, doc *Receipt) error

	// Delete removes a draft with its lines; posted documents stay forever.
	Delete(ctx context.Context, docID id.ID) error

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Receipt], error)
}

// ListFilter for filtering receipts.
type ListFilter struct {
	domain.ListFilter

	WarehouseID *id.ID
	Status      *Status
	DateFrom    *time.Time
	DateTo      *time.Time
}
