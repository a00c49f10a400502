package receipt

import (
	"context"
	"fmt"
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/retry"
	"stockcore/internal/core/tx"
	"stockcore/internal/domain"
	"stockcore/internal/domain/stock"
	"stockcore/pkg/logger"
)

// Service provides business operations for receipt documents.
type Service struct {
	repo       Repository
	stock      *stock.Service
	numerator  numerator.Generator
	txManager  tx.Manager
	warehouses domain.WarehouseGuard
	retryCfg   retry.Config
	hooks      *domain.HookRegistry[*Receipt]
}

// NewService creates a new receipt service.
func NewService(
	repo Repository,
	stockSvc *stock.Service,
	gen numerator.Generator,
	txManager tx.Manager,
	warehouses domain.WarehouseGuard,
) *Service {
	return &Service{
		repo:       repo,
		stock:      stockSvc,
		numerator:  gen,
		txManager:  txManager,
		warehouses: warehouses,
		retryCfg:   retry.DefaultConfig(),
		hooks:      domain.NewHookRegistry[*Receipt](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Receipt] {
	return s.hooks
}

// SetRetryConfig overrides the posting retry settings.
func (s *Service) SetRetryConfig(cfg retry.Config) {
	s.retryCfg = cfg
}

// CreateDraft creates a new draft receipt.
func (s *Service) CreateDraft(ctx context.Context, warehouseID id.ID, reason string, externalRef *string, date *time.Time) (*Receipt, error) {
	if err := s.warehouses.EnsureActive(ctx, warehouseID); err != nil {
		return nil, err
	}

	doc := New(warehouseID, reason)
	doc.ExternalRef = externalRef
	if date != nil {
		doc.Date = *date
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}

	number, err := s.numerator.GetNextNumber(ctx,
		numerator.DefaultConfig(NumeratorPrefix),
		&numerator.Options{Strategy: NumeratorStrategy},
		doc.Date)
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}
	doc.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		return s.repo.SaveLines(ctx, doc.ID, doc.Lines)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "receipt created", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// GetByID retrieves a receipt with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Receipt, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines
	return doc, nil
}

// mutateDraft loads the receipt, applies fn and saves header and lines.
func (s *Service) mutateDraft(ctx context.Context, docID id.ID, fn func(doc *Receipt) error) (*Receipt, error) {
	var result *Receipt
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.GetByID(ctx, docID)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		result = doc
		return nil
	})
	return result, err
}

// AddLine appends a line to a draft receipt.
func (s *Service) AddLine(ctx context.Context, docID id.ID, line Line) (*Receipt, error) {
	return s.mutateDraft(ctx, docID, func(doc *Receipt) error {
		return doc.AddLine(line)
	})
}

// UpdateLine replaces a draft line.
func (s *Service) UpdateLine(ctx context.Context, docID id.ID, lineNo int, line Line) (*Receipt, error) {
	return s.mutateDraft(ctx, docID, func(doc *Receipt) error {
		return doc.UpdateLine(lineNo, line)
	})
}

// RemoveLine deletes a draft line.
func (s *Service) RemoveLine(ctx context.Context, docID id.ID, lineNo int) (*Receipt, error) {
	return s.mutateDraft(ctx, docID, func(doc *Receipt) error {
		return doc.RemoveLine(lineNo)
	})
}

// Receive posts the receipt: each line's quantity goes on hand and straight
// into quarantine. Runs under the bounded retry loop; every attempt reloads
// the document and stock items fresh.
func (s *Service) Receive(ctx context.Context, docID id.ID) (*Receipt, error) {
	var result *Receipt
	err := retry.DoWithConfig(ctx, s.retryCfg, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			doc, err := s.GetByID(ctx, docID)
			if err != nil {
				return err
			}
			if err := doc.CanReceive(ctx); err != nil {
				return err
			}
			if err := doc.MarkReceived(); err != nil {
				return err
			}

			entries := make([]stock.LedgerEntry, 0, len(doc.Lines))
			for i := range doc.Lines {
				line := doc.Lines[i]
				item, err := s.stock.FindOrCreate(ctx, stock.ItemKey{
					ProductID:   line.ProductID,
					VariantID:   line.VariantID,
					WarehouseID: doc.WarehouseID,
					LotNumber:   line.LotNumber,
					ExpiryDate:  line.ExpiryDate,
				})
				if err != nil {
					return err
				}
				if err := item.Increase(line.Quantity); err != nil {
					return err
				}
				if err := item.Block(line.Quantity, stock.BlockReasonQuarantine); err != nil {
					return err
				}
				if line.UnitCost != nil {
					item.RecordUnitCost(*line.UnitCost)
				}
				if err := s.stock.Save(ctx, item); err != nil {
					return err
				}

				entry, err := stock.NewLedgerEntry(item, stock.MovementReceipt,
					line.Quantity, DocumentType, doc.ID, &line.LineID)
				if err != nil {
					return err
				}
				entries = append(entries, entry.WithUnitCost(line.UnitCost).WithNote(doc.Reason))
			}

			if err := s.stock.Append(ctx, entries); err != nil {
				return err
			}
			if err := s.repo.Update(ctx, doc); err != nil {
				return fmt.Errorf("update document: %w", err)
			}
			result = doc
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.AfterPost, result); err != nil {
		logger.Warn(ctx, "after-post hook failed", "id", result.ID, "error", err)
	}
	logger.Info(ctx, "receipt received",
		"id", result.ID, "number", result.Number, "lines", len(result.Lines))
	return result, nil
}

// Approve releases the quarantined quantities, making them available.
func (s *Service) Approve(ctx context.Context, docID id.ID) (*Receipt, error) {
	var result *Receipt
	err := retry.DoWithConfig(ctx, s.retryCfg, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			doc, err := s.GetByID(ctx, docID)
			if err != nil {
				return err
			}
			if err := doc.MarkApproved(); err != nil {
				return err
			}

			for i := range doc.Lines {
				line := doc.Lines[i]
				item, err := s.stock.Items().GetByKey(ctx, stock.ItemKey{
					ProductID:   line.ProductID,
					VariantID:   line.VariantID,
					WarehouseID: doc.WarehouseID,
					LotNumber:   line.LotNumber,
					ExpiryDate:  line.ExpiryDate,
				})
				if err != nil {
					return err
				}
				if err := item.Unblock(line.Quantity); err != nil {
					return err
				}
				if err := s.stock.Save(ctx, item); err != nil {
					return err
				}
			}

			if err := s.repo.Update(ctx, doc); err != nil {
				return fmt.Errorf("update document: %w", err)
			}
			result = doc
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.AfterPost, result); err != nil {
		logger.Warn(ctx, "after-post hook failed", "id", result.ID, "error", err)
	}
	logger.Info(ctx, "receipt approved", "id", result.ID, "number", result.Number)
	return result, nil
}

// Cancel cancels a draft receipt. Idempotent on already canceled documents.
func (s *Service) Cancel(ctx context.Context, docID id.ID) (*Receipt, error) {
	var result *Receipt
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.GetByID(ctx, docID)
		if err != nil {
			return err
		}
		if doc.Status == StatusCanceled {
			result = doc
			return nil
		}
		if err := doc.Cancel(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		result = doc
		return nil
	})
	return result, err
}

// DeleteDraft removes a draft receipt with its lines. Received, approved
// and canceled documents stay forever.
func (s *Service) DeleteDraft(ctx context.Context, docID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.GetByID(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.requireDraft("delete"); err != nil {
			return err
		}
		return s.repo.Delete(ctx, docID)
	})
}

// List retrieves receipts with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Receipt], error) {
	return s.repo.List(ctx, filter)
}
