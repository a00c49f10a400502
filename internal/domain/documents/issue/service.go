package issue

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

// Service provides business operations for issue documents.
type Service struct {
	repo       Repository
	stock      *stock.Service
	allocator  *stock.Allocator
	numerator  numerator.Generator
	txManager  tx.Manager
	warehouses domain.WarehouseGuard
	retryCfg   retry.Config
	hooks      *domain.HookRegistry[*Issue]
}

// NewService creates a new issue service.
func NewService(
	repo Repository,
	stockSvc *stock.Service,
	allocator *stock.Allocator,
	gen numerator.Generator,
	txManager tx.Manager,
	warehouses domain.WarehouseGuard,
) *Service {
	return &Service{
		repo:       repo,
		stock:      stockSvc,
		allocator:  allocator,
		numerator:  gen,
		txManager:  txManager,
		warehouses: warehouses,
		retryCfg:   retry.DefaultConfig(),
		hooks:      domain.NewHookRegistry[*Issue](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Issue] {
	return s.hooks
}

// SetRetryConfig overrides the posting retry settings.
func (s *Service) SetRetryConfig(cfg retry.Config) {
	s.retryCfg = cfg
}

// CreateDraft creates a new draft issue.
func (s *Service) CreateDraft(ctx context.Context, warehouseID id.ID, externalRef *string, date *time.Time) (*Issue, error) {
	if err := s.warehouses.EnsureActive(ctx, warehouseID); err != nil {
		return nil, err
	}

	doc := New(warehouseID)
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

	logger.Info(ctx, "issue created", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// GetByID retrieves an issue with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Issue, error) {
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

func (s *Service) save(ctx context.Context, doc *Issue) error {
	if err := s.repo.Update(ctx, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
		return fmt.Errorf("save lines: %w", err)
	}
	return nil
}

// AddLine appends a line to a draft issue.
func (s *Service) AddLine(ctx context.Context, docID id.ID, line Line) (*Issue, error) {
	var result *Issue
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.GetByID(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.AddLine(line); err != nil {
			return err
		}
		result = doc
		return s.save(ctx, doc)
	})
	return result, err
}

// UpdateLine releases the line's allocations and replaces its contents.
func (s *Service) UpdateLine(ctx context.Context, docID id.ID, lineNo int, line Line) (*Issue, error) {
	var result *Issue
	err := retry.DoWithConfig(ctx, s.retryCfg, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			doc, err := s.GetByID(ctx, docID)
			if err != nil {
				return err
			}
			if err := doc.requireDraft("update_line"); err != nil {
				return err
			}
			idx, err := doc.lineIndex(lineNo)
			if err != nil {
				return err
			}
			if err := s.releaseAllocations(ctx, doc.Lines[idx].Allocations); err != nil {
				return err
			}
			if err := doc.UpdateLine(lineNo, line); err != nil {
				return err
			}
			result = doc
			return s.save(ctx, doc)
		})
	})
	return result, err
}

// RemoveLine releases the line's allocations and deletes it.
func (s *Service) RemoveLine(ctx context.Context, docID id.ID, lineNo int) (*Issue, error) {
	var result *Issue
	err := retry.DoWithConfig(ctx, s.retryCfg, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			doc, err := s.GetByID(ctx, docID)
			if err != nil {
				return err
			}
			if err := doc.requireDraft("remove_line"); err != nil {
				return err
			}
			idx, err := doc.lineIndex(lineNo)
			if err != nil {
				return err
			}
			if err := s.releaseAllocations(ctx, doc.Lines[idx].Allocations); err != nil {
				return err
			}
			if err := doc.RemoveLine(lineNo); err != nil {
				return err
			}
			result = doc
			return s.save(ctx, doc)
		})
	})
	return result, err
}

// AllocateLineFefo reserves stock for a line following the FEFO policy.
// Existing allocations are released first, so re-allocation recomputes the
// whole line from current stock.
func (s *Service) AllocateLineFefo(ctx context.Context, docID id.ID, lineNo int) (*Issue, error) {
	var result *Issue
	err := retry.DoWithConfig(ctx, s.retryCfg, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			doc, err := s.GetByID(ctx, docID)
			if err != nil {
				return err
			}
			if err := doc.requireDraft("allocate"); err != nil {
				return err
			}
			idx, err := doc.lineIndex(lineNo)
			if err != nil {
				return err
			}
			line := doc.Lines[idx]

			if err := s.releaseAllocations(ctx, line.Allocations); err != nil {
				return err
			}

			allocations, err := s.allocator.Allocate(ctx, stock.AllocationRequest{
				WarehouseID:  doc.WarehouseID,
				ProductID:    line.ProductID,
				VariantID:    line.VariantID,
				Quantity:     line.Requested,
				RequireShelf: true,
			})
			if err != nil {
				return err
			}
			if err := doc.SetAllocations(lineNo, allocations); err != nil {
				return err
			}
			result = doc
			return s.save(ctx, doc)
		})
	})
	return result, err
}

// Post issues the allocated stock: each reservation is released and the
// same quantity decreased, with a negative ledger entry carrying the item's
// best-known unit cost.
func (s *Service) Post(ctx context.Context, docID id.ID) (*Issue, error) {
	var result *Issue
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

			var entries []stock.LedgerEntry
			for i := range doc.Lines {
				line := doc.Lines[i]
				for _, alloc := range line.Allocations {
					item, err := s.stock.GetByID(ctx, alloc.StockItemID)
					if err != nil {
						return err
					}
					if err := item.Release(alloc.Quantity); err != nil {
						return err
					}
					if err := item.Decrease(alloc.Quantity); err != nil {
						return err
					}
					if err := s.stock.Save(ctx, item); err != nil {
						return err
					}

					entry, err := stock.NewLedgerEntry(item, stock.MovementIssue,
						alloc.Quantity, DocumentType, doc.ID, &line.LineID)
					if err != nil {
						return err
					}
					entries = append(entries, entry.WithUnitCost(item.LastUnitCost))
				}
			}

			if err := s.stock.Append(ctx, entries); err != nil {
				return err
			}
			result = doc
			return s.save(ctx, doc)
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.AfterPost, result); err != nil {
		logger.Warn(ctx, "after-post hook failed", "id", result.ID, "error", err)
	}
	logger.Info(ctx, "issue posted",
		"id", result.ID, "number", result.Number, "lines", len(result.Lines))
	return result, nil
}

// Cancel releases all outstanding allocations and cancels the draft.
// Idempotent on already canceled documents.
func (s *Service) Cancel(ctx context.Context, docID id.ID) (*Issue, error) {
	var result *Issue
	err := retry.DoWithConfig(ctx, s.retryCfg, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			doc, err := s.GetByID(ctx, docID)
			if err != nil {
				return err
			}
			if doc.Status == StatusCanceled {
				result = doc
				return nil
			}

			for i := range doc.Lines {
				if err := s.releaseAllocations(ctx, doc.Lines[i].Allocations); err != nil {
					return err
				}
				doc.Lines[i].Allocations = nil
			}
			if err := doc.Cancel(); err != nil {
				return err
			}
			result = doc
			return s.save(ctx, doc)
		})
	})
	return result, err
}

// DeleteDraft removes a draft issue with its lines, releasing any
// allocations first. Posted and canceled documents stay forever.
func (s *Service) DeleteDraft(ctx context.Context, docID id.ID) error {
	return retry.DoWithConfig(ctx, s.retryCfg, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			doc, err := s.GetByID(ctx, docID)
			if err != nil {
				return err
			}
			if err := doc.requireDraft("delete"); err != nil {
				return err
			}
			for i := range doc.Lines {
				if err := s.releaseAllocations(ctx, doc.Lines[i].Allocations); err != nil {
					return err
				}
			}
			return s.repo.Delete(ctx, docID)
		})
	})
}

// releaseAllocations returns reserved quantities to available.
func (s *Service) releaseAllocations(ctx context.Context, allocations []stock.Reservation) error {
	for _, alloc := range allocations {
		item, err := s.stock.GetByID(ctx, alloc.StockItemID)
		if err != nil {
			return err
		}
		if err := item.Release(alloc.Quantity); err != nil {
			return err
		}
		if err := s.stock.Save(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// List retrieves issues with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Issue], error) {
	return s.repo.List(ctx, filter)
}
