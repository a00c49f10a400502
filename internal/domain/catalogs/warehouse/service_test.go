package warehouse

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/tx"
	"stockcore/internal/domain"
)

// memoryRepo is an in-memory Repository for tests.
type memoryRepo struct {
	mu    sync.Mutex
	items map[id.ID]*Warehouse
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[id.ID]*Warehouse)}
}

func (r *memoryRepo) Create(ctx context.Context, wh *Warehouse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Code == wh.Code {
			return apperror.NewDuplicate("warehouse", "code", wh.Code)
		}
	}
	cp := *wh
	r.items[wh.ID] = &cp
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, whID id.ID) (*Warehouse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wh, ok := r.items[whID]
	if !ok {
		return nil, apperror.NewNotFound("warehouse", whID.String())
	}
	cp := *wh
	return &cp, nil
}

func (r *memoryRepo) GetByCode(ctx context.Context, code string) (*Warehouse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, wh := range r.items {
		if wh.Code == code {
			cp := *wh
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("warehouse", code)
}

func (r *memoryRepo) Update(ctx context.Context, wh *Warehouse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[wh.ID]
	if !ok {
		return apperror.NewNotFound("warehouse", wh.ID.String())
	}
	if stored.Version != wh.Version {
		return apperror.NewConcurrentModification("warehouse", wh.ID.String())
	}
	cp := *wh
	cp.Version = stored.Version + 1
	r.items[wh.ID] = &cp
	wh.Version = cp.Version
	return nil
}

func (r *memoryRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Warehouse], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*Warehouse
	for _, wh := range r.items {
		if filter.Search != "" && !strings.Contains(wh.Name, filter.Search) && !strings.Contains(wh.Code, filter.Search) {
			continue
		}
		cp := *wh
		items = append(items, &cp)
	}
	return domain.ListResult[*Warehouse]{
		Items:      items,
		TotalCount: int64(len(items)),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

func (r *memoryRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	_, err := r.GetByCode(ctx, code)
	if err == nil {
		return true, nil
	}
	if apperror.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	svc := NewService(repo, tx.Passthrough{}, &numerator.MockGenerator{})
	return svc, repo
}

func TestCreate_GeneratesCodeWhenEmpty(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	wh := NewWarehouse("", "Central", TypeMain)
	require.NoError(t, svc.Create(ctx, wh))

	assert.True(t, strings.HasPrefix(wh.Code, "WH-"), "code %q", wh.Code)
	assert.True(t, wh.IsActive)
}

func TestCreate_KeepsExplicitCode(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	wh := NewWarehouse("WH-MAIN", "Central", TypeMain)
	require.NoError(t, svc.Create(ctx, wh))
	assert.Equal(t, "WH-MAIN", wh.Code)

	dup := NewWarehouse("WH-MAIN", "Other", TypeRetail)
	err := svc.Create(ctx, dup)
	require.Error(t, err)
}

func TestCreate_RejectsUnknownType(t *testing.T) {
	svc, _ := newTestService()

	wh := NewWarehouse("WH-X", "Weird", WarehouseType("spaceship"))
	err := svc.Create(context.Background(), wh)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestEnsureActive(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	wh := NewWarehouse("WH-1", "Central", TypeMain)
	require.NoError(t, svc.Create(ctx, wh))

	require.NoError(t, svc.EnsureActive(ctx, wh.ID))

	_, err := svc.Deactivate(ctx, "WH-1")
	require.NoError(t, err)

	err = svc.EnsureActive(ctx, wh.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	err = svc.EnsureActive(ctx, id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeactivate_Idempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	wh := NewWarehouse("WH-1", "Central", TypeMain)
	require.NoError(t, svc.Create(ctx, wh))

	first, err := svc.Deactivate(ctx, "WH-1")
	require.NoError(t, err)
	assert.False(t, first.IsActive)

	second, err := svc.Deactivate(ctx, "WH-1")
	require.NoError(t, err)
	assert.False(t, second.IsActive)
	assert.Equal(t, first.Version, second.Version)
}
