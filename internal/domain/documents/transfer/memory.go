package transfer

import (
	"context"
	"sort"
	"sync"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain"
)

// MemoryRepository is an in-memory Repository for tests.
type MemoryRepository struct {
	mu    sync.Mutex
	docs  map[id.ID]Transfer
	lines map[id.ID][]Line
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		docs:  make(map[id.ID]Transfer),
		lines: make(map[id.ID][]Line),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, doc *Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; ok {
		return apperror.NewDuplicate("transfer", "id", doc.ID.String())
	}
	stored := *doc
	stored.Lines = nil
	r.docs[doc.ID] = stored
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, docID id.ID) (*Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("transfer", docID.String())
	}
	c := doc
	return &c, nil
}

func (r *MemoryRepository) GetByNumber(ctx context.Context, number string) (*Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.Number == number {
			c := doc
			return &c, nil
		}
	}
	return nil, apperror.NewNotFound("transfer", number)
}

func (r *MemoryRepository) Update(ctx context.Context, doc *Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[doc.ID]
	if !ok {
		return apperror.NewNotFound("transfer", doc.ID.String())
	}
	if doc.Version <= stored.Version {
		return apperror.NewConcurrentModification("transfer", doc.ID.String())
	}
	updated := *doc
	updated.Lines = nil
	r.docs[doc.ID] = updated
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, docID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[docID]; !ok {
		return apperror.NewNotFound("transfer", docID.String())
	}
	delete(r.docs, docID)
	delete(r.lines, docID)
	return nil
}

func (r *MemoryRepository) GetLines(ctx context.Context, docID id.ID) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyLines(r.lines[docID]), nil
}

func (r *MemoryRepository) SaveLines(ctx context.Context, docID id.ID, lines []Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[docID] = copyLines(lines)
	return nil
}

func copyLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	for i := range out {
		if out[i].Segments != nil {
			segs := make([]Segment, len(out[i].Segments))
			copy(segs, out[i].Segments)
			out[i].Segments = segs
		}
	}
	return out
}

func (r *MemoryRepository) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Transfer], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []*Transfer
	for _, doc := range r.docs {
		if filter.SourceWarehouseID != nil && doc.SourceWarehouseID != *filter.SourceWarehouseID {
			continue
		}
		if filter.DestWarehouseID != nil && doc.DestWarehouseID != *filter.DestWarehouseID {
			continue
		}
		if filter.Status != nil && doc.Status != *filter.Status {
			continue
		}
		c := doc
		items = append(items, &c)
	}
	sort.Slice(items, func(a, b int) bool {
		return items[a].Number < items[b].Number
	})

	return domain.ListResult[*Transfer]{
		Items:      items,
		TotalCount: int64(len(items)),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

var _ Repository = (*MemoryRepository)(nil)
