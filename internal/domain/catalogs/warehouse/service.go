package warehouse

import (
	"context"
	"fmt"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/tx"
	"stockcore/internal/domain"
)

// Compile-time checks.
var _ domain.WarehouseGuard = (*Service)(nil)

// Service provides business logic for the Warehouse catalog.
// Common CRUD is delegated to the embedded generic catalog service.
type Service struct {
	*domain.CatalogService[*Warehouse]
	repo Repository
}

// NewService creates a new Warehouse service.
func NewService(repo Repository, txManager tx.Manager, gen numerator.Generator) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Warehouse]{
		Repo:       repo,
		TxManager:  txManager,
		Numerator:  gen,
		EntityName: "warehouse",
		CodePrefix: "WH",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
	}

	base.Hooks().On(domain.BeforeCreate, svc.prepareForCreate)

	return svc
}

// prepareForCreate generates a code when none was provided.
func (s *Service) prepareForCreate(ctx context.Context, wh *Warehouse) error {
	if wh.Code == "" {
		code, err := s.NextCode(ctx)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		wh.Code = code
	}
	return nil
}

// EnsureActive implements domain.WarehouseGuard: document services call it
// before accepting a warehouse reference.
func (s *Service) EnsureActive(ctx context.Context, warehouseID id.ID) error {
	wh, err := s.GetByID(ctx, warehouseID)
	if err != nil {
		return err
	}
	if !wh.IsActive {
		return apperror.NewValidation("warehouse is not active").
			WithDetail("warehouse_id", warehouseID.String()).
			WithDetail("code", wh.Code)
	}
	return nil
}

// Deactivate marks the warehouse as non-operational. Existing stock stays
// in place; new documents against it are rejected at validation.
func (s *Service) Deactivate(ctx context.Context, code string) (*Warehouse, error) {
	wh, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !wh.IsActive {
		return wh, nil
	}
	wh.IsActive = false
	if err := s.Update(ctx, wh); err != nil {
		return nil, err
	}
	return wh, nil
}
