package catalog_repo

import (
	"stockcore/internal/domain/catalogs/warehouse"
	"stockcore/internal/infrastructure/storage/postgres"
)

const warehouseTable = "cat_warehouses"

var _ warehouse.Repository = (*WarehouseRepo)(nil)

// WarehouseRepo implements warehouse.Repository.
type WarehouseRepo struct {
	*BaseCatalogRepo[*warehouse.Warehouse]
}

// NewWarehouseRepo creates the warehouse repository.
func NewWarehouseRepo(txManager *postgres.TxManager) *WarehouseRepo {
	return &WarehouseRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			warehouseTable,
			postgres.ExtractDBColumns[warehouse.Warehouse](),
			func() *warehouse.Warehouse { return &warehouse.Warehouse{} },
		),
	}
}
