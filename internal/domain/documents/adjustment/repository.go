package adjustment

import (
	"context"
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/domain"
)

// Repository defines persistence for adjustment documents.
type Repository interface {
	Create(ctx context.Context, doc *Adjustment) error
	GetByID(ctx context.Context, docID id.ID) (*Adjustment, error)
	GetByNumber(ctx context.Context, number string) (*Adjustment, error)
	Update(ctx context.Context, doc *Adjustment) error
	Delete(ctx context.Context, docID id.ID) error

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Adjustment], error)
}

// ListFilter for filtering adjustments.
type ListFilter struct {
	domain.ListFilter

	WarehouseID *id.ID
	Status      *Status
	ReasonCode  *string
	DateFrom    *time.Time
	DateTo      *time.Time
}
