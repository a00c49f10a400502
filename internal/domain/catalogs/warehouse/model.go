// Package warehouse provides the Warehouse catalog. Warehouses are the
// storage locations stock items belong to; products and variants stay
// opaque references, but warehouses are managed locally because documents
// validate against them.
package warehouse

import (
	"context"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
)

// WarehouseType defines the type of warehouse.
type WarehouseType string

const (
	TypeMain         WarehouseType = "main"
	TypeDistribution WarehouseType = "distribution"
	TypeRetail       WarehouseType = "retail"
	TypeTransit      WarehouseType = "transit"
)

// Warehouse represents a storage location for goods.
type Warehouse struct {
	entity.Catalog

	// Type defines the warehouse category
	Type WarehouseType `db:"type" json:"type"`

	// Address is the physical address
	Address *string `db:"address" json:"address,omitempty"`

	// IsActive indicates if warehouse is operational; documents cannot be
	// created against inactive warehouses
	IsActive bool `db:"is_active" json:"isActive"`

	// Description
	Description *string `db:"description" json:"description,omitempty"`
}

// NewWarehouse creates a new Warehouse with required fields.
func NewWarehouse(code, name string, whType WarehouseType) *Warehouse {
	return &Warehouse{
		Catalog:  entity.NewCatalog(code, name),
		Type:     whType,
		IsActive: true,
	}
}

// Validate implements entity.Validatable interface.
func (w *Warehouse) Validate(ctx context.Context) error {
	if err := w.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !isValidWarehouseType(w.Type) {
		return apperror.NewValidation("invalid warehouse type").
			WithDetail("field", "type").
			WithDetail("value", string(w.Type))
	}

	return nil
}

// CanAcceptStock returns true if the warehouse can receive goods.
func (w *Warehouse) CanAcceptStock() bool {
	return w.IsActive
}

// CanIssueStock returns true if the warehouse can issue goods.
func (w *Warehouse) CanIssueStock() bool {
	return w.IsActive
}

func isValidWarehouseType(t WarehouseType) bool {
	switch t {
	case TypeMain, TypeDistribution, TypeRetail, TypeTransit:
		return true
	}
	return false
}
