package adjustment

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

// Service provides business operations for adjustment documents.
type Service struct {
	repo       Repository
	stock      *stock.Service
	numerator  numerator.Generator
	txManager  tx.Manager
	warehouses domain.WarehouseGuard
	retryCfg   retry.Config
	hooks      *domain.HookRegistry[*Adjustment]
}

// NewService creates a new adjustment service.
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
		hooks:      domain.NewHookRegistry[*Adjustment](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Adjustment] {
	return s.hooks
}

// SetRetryConfig overrides the posting retry settings.
func (s *Service) SetRetryConfig(cfg retry.Config) {
	s.retryCfg = cfg
}

// CreateDraft creates a new draft adjustment.
func (s *Service) CreateDraft(ctx context.Context, warehouseID id.ID, reasonCode string, note string, date *time.Time) (*Adjustment, error) {
	if err := s.warehouses.EnsureActive(ctx, warehouseID); err != nil {
		return nil, err
	}

	doc := New(warehouseID, reasonCode)
	doc.Note = note
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

	logger.Info(ctx, "adjustment created", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// GetByID retrieves an adjustment with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Adjustment, error) {
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

// mutateDraft loads the adjustment, applies fn and saves header and lines.
func (s *Service) mutateDraft(ctx context.Context, docID id.ID, fn func(doc *Adjustment) error) (*Adjustment, error) {
	var result *Adjustment
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

// AddLine appends a line to a draft adjustment.
func (s *Service) AddLine(ctx context.Context, docID id.ID, line Line) (*Adjustment, error) {
	return s.mutateDraft(ctx, docID, func(doc *Adjustment) error {
		return doc.AddLine(line)
	})
}

// UpdateLine replaces a draft line.
func (s *Service) UpdateLine(ctx context.Context, docID id.ID, lineNo int, line Line) (*Adjustment, error) {
	return s.mutateDraft(ctx, docID, func(doc *Adjustment) error {
		return doc.UpdateLine(lineNo, line)
	})
}

// RemoveLine deletes a draft line.
func (s *Service) RemoveLine(ctx context.Context, docID id.ID, lineNo int) (*Adjustment, error) {
	return s.mutateDraft(ctx, docID, func(doc *Adjustment) error {
		return doc.RemoveLine(lineNo)
	})
}

// Post applies the signed deltas: positive lines increase on-hand, negative
// lines decrease it, each with an adjustment ledger entry. A negative line
// exceeding available stock fails the whole document.
func (s *Service) Post(ctx context.Context, docID id.ID) (*Adjustment, error) {
	var result *Adjustment
	err := retry.DoWithConfig(ctx, s.retryCfg, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			doc, err := s.GetByID(ctx, docID)
			if err != nil {
				return err
			}
			if err := doc.CanPost(ctx); err != nil {
				return err
			}
			if err := doc.MarkPosted(); err != nil {
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

				movement := stock.MovementAdjustmentPlus
				magnitude := line.QtyDelta
				if line.QtyDelta.IsNegative() {
					movement = stock.MovementAdjustmentMinus
					magnitude = line.QtyDelta.Neg()
				}

				if movement == stock.MovementAdjustmentPlus {
					err = item.Increase(magnitude)
				} else {
					err = item.Decrease(magnitude)
				}
				if err != nil {
					return err
				}
				if err := s.stock.Save(ctx, item); err != nil {
					return err
				}

				entry, err := stock.NewLedgerEntry(item, movement,
					magnitude, DocumentType, doc.ID, &line.LineID)
				if err != nil {
					return err
				}
				entries = append(entries, entry.WithNote(doc.ReasonCode))
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
	logger.Info(ctx, "adjustment posted",
		"id", result.ID, "number", result.Number, "lines", len(result.Lines))
	return result, nil
}

// Cancel cancels a draft adjustment. Idempotent on canceled documents.
func (s *Service) Cancel(ctx context.Context, docID id.ID) (*Adjustment, error) {
	var result *Adjustment
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

// DeleteDraft removes a draft adjustment with its lines. Posted and
// canceled documents stay forever.
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

// List retrieves adjustments with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Adjustment], error) {
	return s.repo.List(ctx, filter)
}
