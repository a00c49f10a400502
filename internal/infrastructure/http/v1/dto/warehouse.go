package dto

import "stockcore/internal/domain/catalogs/warehouse"

// CreateWarehouseRequest creates a new warehouse. Code is optional; the
// numerator assigns one when empty.
type CreateWarehouseRequest struct {
	Code        string  `json:"code"`
	Name        string  `json:"name" binding:"required"`
	Type        string  `json:"type" binding:"required"`
	Address     *string `json:"address"`
	Description *string `json:"description"`
}

// ToWarehouse builds the domain entity from the request.
func (r CreateWarehouseRequest) ToWarehouse() *warehouse.Warehouse {
	wh := warehouse.NewWarehouse(r.Code, r.Name, warehouse.WarehouseType(r.Type))
	wh.Address = r.Address
	wh.Description = r.Description
	return wh
}

// UpdateWarehouseRequest updates mutable warehouse fields.
type UpdateWarehouseRequest struct {
	Name        string  `json:"name" binding:"required"`
	Type        string  `json:"type" binding:"required"`
	Address     *string `json:"address"`
	Description *string `json:"description"`
}
