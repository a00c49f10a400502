// Package v1 provides HTTP API version 1.
package v1

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockcore/internal/core/id"
	"stockcore/internal/core/numerator"
	"stockcore/internal/domain"
	"stockcore/internal/domain/catalogs/warehouse"
	"stockcore/internal/domain/documents/adjustment"
	"stockcore/internal/domain/documents/issue"
	"stockcore/internal/domain/documents/receipt"
	"stockcore/internal/domain/documents/transfer"
	"stockcore/internal/domain/reports"
	"stockcore/internal/domain/stock"
	"stockcore/internal/infrastructure/http/v1/handlers"
	"stockcore/internal/infrastructure/http/v1/middleware"
	"stockcore/internal/infrastructure/storage/postgres"
	"stockcore/internal/infrastructure/storage/postgres/catalog_repo"
	"stockcore/internal/infrastructure/storage/postgres/document_repo"
	"stockcore/internal/infrastructure/storage/postgres/stock_repo"
	"stockcore/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (used by health checks).
	Pool *postgres.Pool

	// TxManager runs repository operations in transactions.
	TxManager *postgres.TxManager

	// Logger for request logging.
	Logger *logger.Logger

	// Numerator generates document numbers.
	Numerator numerator.Generator

	// Audit records document lifecycle snapshots. Optional.
	Audit *postgres.AuditService
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters).
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()

	// Shared domain wiring.
	itemRepo := stock_repo.NewItemRepo(cfg.TxManager)
	ledgerRepo := stock_repo.NewLedgerRepo(cfg.TxManager)
	stockService := stock.NewService(itemRepo, ledgerRepo)
	allocator := stock.NewAllocator(itemRepo)

	warehouseRepo := catalog_repo.NewWarehouseRepo(cfg.TxManager)
	warehouseService := warehouse.NewService(warehouseRepo, cfg.TxManager, cfg.Numerator)

	reportsService := reports.NewService(itemRepo, ledgerRepo)

	v1 := router.Group("/api/v1")
	{
		// --- WAREHOUSES ---
		{
			handler := handlers.NewWarehouseHandler(baseHandler, warehouseService)
			g := v1.Group("/catalog/warehouses")
			g.POST("", handler.Create)
			g.GET("", handler.List)
			g.GET("/:id", handler.Get)
			g.PUT("/:id", handler.Update)
			g.GET("/by-code/:code", handler.GetByCode)
			g.POST("/by-code/:code/deactivate", handler.Deactivate)
		}

		// --- STOCK ITEMS ---
		{
			handler := handlers.NewStockHandler(baseHandler, stockService)
			g := v1.Group("/stock/items")
			g.GET("", handler.List)
			g.GET("/:id", handler.Get)
			g.POST("/:id/shelf", handler.AssignShelf)
		}

		// --- RECEIPTS ---
		{
			service := receipt.NewService(
				document_repo.NewReceiptRepo(cfg.TxManager),
				stockService, cfg.Numerator, cfg.TxManager, warehouseService,
			)
			registerAuditHook(cfg.Audit, service.Hooks(), "receipt",
				func(doc *receipt.Receipt) id.ID { return doc.ID },
				func(doc *receipt.Receipt) postgres.AuditAction {
					if doc.Status == receipt.StatusReceived {
						return postgres.AuditActionReceive
					}
					return postgres.AuditActionApprove
				})

			handler := handlers.NewReceiptHandler(baseHandler, service)
			g := v1.Group("/document/receipts")
			g.POST("", handler.Create)
			g.GET("", handler.List)
			g.GET("/:id", handler.Get)
			g.DELETE("/:id", handler.Delete)
			g.POST("/:id/lines", handler.AddLine)
			g.PUT("/:id/lines/:lineNo", handler.UpdateLine)
			g.DELETE("/:id/lines/:lineNo", handler.RemoveLine)
			g.POST("/:id/receive", handler.Receive)
			g.POST("/:id/approve", handler.Approve)
			g.POST("/:id/cancel", handler.Cancel)
		}

		// --- ISSUES ---
		{
			service := issue.NewService(
				document_repo.NewIssueRepo(cfg.TxManager),
				stockService, allocator, cfg.Numerator, cfg.TxManager, warehouseService,
			)
			registerAuditHook(cfg.Audit, service.Hooks(), "issue",
				func(doc *issue.Issue) id.ID { return doc.ID },
				func(*issue.Issue) postgres.AuditAction { return postgres.AuditActionPost })

			handler := handlers.NewIssueHandler(baseHandler, service)
			g := v1.Group("/document/issues")
			g.POST("", handler.Create)
			g.GET("", handler.List)
			g.GET("/:id", handler.Get)
			g.DELETE("/:id", handler.Delete)
			g.POST("/:id/lines", handler.AddLine)
			g.PUT("/:id/lines/:lineNo", handler.UpdateLine)
			g.DELETE("/:id/lines/:lineNo", handler.RemoveLine)
			g.POST("/:id/lines/:lineNo/allocate", handler.AllocateLine)
			g.POST("/:id/post", handler.Post)
			g.POST("/:id/cancel", handler.Cancel)
		}

		// --- TRANSFERS ---
		{
			service := transfer.NewService(
				document_repo.NewTransferRepo(cfg.TxManager),
				stockService, allocator, cfg.Numerator, cfg.TxManager, warehouseService,
			)
			registerAuditHook(cfg.Audit, service.Hooks(), "transfer",
				func(doc *transfer.Transfer) id.ID { return doc.ID },
				func(doc *transfer.Transfer) postgres.AuditAction {
					if doc.Status == transfer.StatusShipped {
						return postgres.AuditActionShip
					}
					return postgres.AuditActionPost
				})

			handler := handlers.NewTransferHandler(baseHandler, service)
			g := v1.Group("/document/transfers")
			g.POST("", handler.Create)
			g.GET("", handler.List)
			g.GET("/:id", handler.Get)
			g.DELETE("/:id", handler.Delete)
			g.POST("/:id/lines", handler.AddLine)
			g.DELETE("/:id/lines/:lineNo", handler.RemoveLine)
			g.POST("/:id/lines/:lineNo/allocate", handler.AllocateLine)
			g.POST("/:id/ship", handler.Ship)
			g.POST("/:id/segments/:segmentId/receive", handler.ReceiveSegment)
			g.POST("/:id/cancel", handler.Cancel)
		}

		// --- ADJUSTMENTS ---
		{
			service := adjustment.NewService(
				document_repo.NewAdjustmentRepo(cfg.TxManager),
				stockService, cfg.Numerator, cfg.TxManager, warehouseService,
			)
			registerAuditHook(cfg.Audit, service.Hooks(), "adjustment",
				func(doc *adjustment.Adjustment) id.ID { return doc.ID },
				func(*adjustment.Adjustment) postgres.AuditAction { return postgres.AuditActionPost })

			handler := handlers.NewAdjustmentHandler(baseHandler, service)
			g := v1.Group("/document/adjustments")
			g.POST("", handler.Create)
			g.GET("", handler.List)
			g.GET("/:id", handler.Get)
			g.DELETE("/:id", handler.Delete)
			g.POST("/:id/lines", handler.AddLine)
			g.PUT("/:id/lines/:lineNo", handler.UpdateLine)
			g.DELETE("/:id/lines/:lineNo", handler.RemoveLine)
			g.POST("/:id/post", handler.Post)
			g.POST("/:id/cancel", handler.Cancel)
		}

		// --- REPORTS ---
		{
			handler := handlers.NewReportsHandler(baseHandler, reportsService)
			g := v1.Group("/reports")
			g.GET("/on-hand", handler.OnHand)
			g.GET("/history", handler.History)
			g.GET("/turnover", handler.Turnover)
		}
	}

	return router
}

// registerAuditHook snapshots the document after a successful posting.
// Audit failures do not fail the posting itself.
func registerAuditHook[T any](audit *postgres.AuditService, hooks *domain.HookRegistry[T], docType string, docID func(T) id.ID, action func(T) postgres.AuditAction) {
	if audit == nil {
		return
	}
	hooks.On(domain.AfterPost, func(ctx context.Context, doc T) error {
		if err := audit.Record(ctx, docType, docID(doc), action(doc), doc); err != nil {
			logger.Warn(ctx, "audit record failed", "documentType", docType, "documentId", docID(doc).String(), "error", err)
		}
		return nil
	})
}
