// Package main provides a CLI tool for seeding the database with demo data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/catalogs/warehouse"
	"stockcore/internal/domain/documents/receipt"
	"stockcore/internal/domain/stock"
	"stockcore/internal/infrastructure/storage/postgres"
	"stockcore/internal/infrastructure/storage/postgres/catalog_repo"
	"stockcore/internal/infrastructure/storage/postgres/document_repo"
	"stockcore/internal/infrastructure/storage/postgres/stock_repo"
	"stockcore/pkg/logger"
	"stockcore/pkg/numerator"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	poolCfg := postgres.DefaultPoolConfig(dbURL)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)
	gen := numerator.New(pool)

	warehouseService := warehouse.NewService(catalog_repo.NewWarehouseRepo(txManager), txManager, gen)

	mainWh, err := ensureWarehouse(ctx, warehouseService, log, "WH-MAIN", "Main warehouse", warehouse.TypeMain)
	if err != nil {
		log.Fatalw("failed to seed main warehouse", "error", err)
	}
	if _, err := ensureWarehouse(ctx, warehouseService, log, "WH-RETAIL", "Retail store", warehouse.TypeRetail); err != nil {
		log.Fatalw("failed to seed retail warehouse", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoReceipt(ctx, txManager, gen, warehouseService, mainWh, log); err != nil {
			log.Fatalw("failed to seed demo receipt", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func ensureWarehouse(ctx context.Context, svc *warehouse.Service, log *logger.Logger, code, name string, whType warehouse.WarehouseType) (*warehouse.Warehouse, error) {
	existing, err := svc.GetByCode(ctx, code)
	if err == nil {
		log.Infow("warehouse already exists", "code", code)
		return existing, nil
	}

	wh := warehouse.NewWarehouse(code, name, whType)
	if err := svc.Create(ctx, wh); err != nil {
		return nil, err
	}
	log.Infow("warehouse created", "code", code, "id", wh.ID)
	return wh, nil
}

// seedDemoReceipt posts one approved receipt so the demo environment has
// stock on hand.
func seedDemoReceipt(
	ctx context.Context,
	txManager *postgres.TxManager,
	gen *numerator.Service,
	warehouses *warehouse.Service,
	wh *warehouse.Warehouse,
	log *logger.Logger,
) error {
	stockService := stock.NewService(stock_repo.NewItemRepo(txManager), stock_repo.NewLedgerRepo(txManager))
	receiptService := receipt.NewService(document_repo.NewReceiptRepo(txManager), stockService, gen, txManager, warehouses)

	doc, err := receiptService.CreateDraft(ctx, wh.ID, "initial stock", nil, nil)
	if err != nil {
		return err
	}

	lot := "LOT-2026-001"
	expiry := time.Now().AddDate(1, 0, 0)
	cost := types.NewMoney(12.50)

	lines := []receipt.Line{
		{
			ProductID:  id.New(),
			Quantity:   types.NewQuantityFromInt(100),
			LotNumber:  &lot,
			ExpiryDate: &expiry,
			UnitCost:   &cost,
		},
		{
			ProductID: id.New(),
			Quantity:  types.NewQuantityFromInt(40),
		},
	}
	for _, line := range lines {
		if _, err := receiptService.AddLine(ctx, doc.ID, line); err != nil {
			return err
		}
	}

	if _, err := receiptService.Receive(ctx, doc.ID); err != nil {
		return err
	}
	if _, err := receiptService.Approve(ctx, doc.ID); err != nil {
		return err
	}

	log.Infow("demo receipt posted", "number", doc.Number, "warehouse", wh.Code)
	return nil
}
