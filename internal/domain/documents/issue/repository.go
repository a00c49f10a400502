package issue

import (
	"context"
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/domain"
)

// Repository defines persistence for issue documents. Line allocations are
// stored with the lines and travel through SaveLines.
type Repository interface {
	Create(ctx context.Context, doc *Issue) error
	GetByID(ctx context.Context, docID id.ID) (*Issue, error)
	GetByNumber(ctx context.Context, number string) (*Issue, error)
	Update(ctx context.Context, doc *Issue) error
	Delete(ctx context.Context, docID id.ID) error

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Issue], error)
}

// ListFilter for filtering issues.
type ListFilter struct {
	domain.ListFilter

	WarehouseID *id.ID
	Status      *Status
	DateFrom    *time.Time
	DateTo      *time.Time
}
