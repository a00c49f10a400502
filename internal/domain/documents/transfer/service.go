package transfer

import (
	"context"
	"fmt"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/retry"
	"stockcore/internal/core/tx"
	"stockcore/internal/core/types"
	"stockcore/internal/domain"
	"stockcore/internal/domain/stock"
	"stockcore/pkg/logger"
)

// Service provides business operations for transfer documents.
type Service struct {
	repo       Repository
	stock      *stock.Service
	allocator  *stock.Allocator
	numerator  numerator.Generator
	txManager  tx.Manager
	warehouses domain.WarehouseGuard
	retryCfg   retry.Config
	hooks      *domain.HookRegistry[*Transfer]
}

// NewService creates a new transfer service.
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
		hooks:      domain.NewHookRegistry[*Transfer](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Transfer] {
	return s.hooks
}

// SetRetryConfig overrides the posting retry settings.
func (s *Service) SetRetryConfig(cfg retry.Config) {
	s.retryCfg = cfg
}

// CreateDraft creates a new draft transfer between two distinct warehouses.
func (s *Service) CreateDraft(ctx context.Context, sourceID, destID id.ID, externalRef *string, date *time.Time) (*Transfer, error) {
	if err := s.warehouses.EnsureActive(ctx, sourceID); err != nil {
		return nil, err
	}
	if err := s.warehouses.EnsureActive(ctx, destID); err != nil {
		return nil, err
	}

	doc, err := New(sourceID, destID)
	if err != nil {
		return nil, err
	}
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

	logger.Info(ctx, "transfer created",
		"id", doc.ID, "number", doc.Number,
		"source", doc.SourceWarehouseID, "dest", doc.DestWarehouseID)
	return doc, nil
}

// GetByID retrieves a transfer with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Transfer, error) {
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

func (s *Service) save(ctx context.Context, doc *Transfer) error {
	if err := s.repo.Update(ctx, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
		return fmt.Errorf("save lines: %w", err)
	}
	return nil
}

// AddLine appends a line to a draft transfer.
func (s *Service) AddLine(ctx context.Context, docID id.ID, line Line) (*Transfer, error) {
	var result *Transfer
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

// RemoveLine releases the line's segment reservations and deletes it.
func (s *Service) RemoveLine(ctx context.Context, docID id.ID, lineNo int) (*Transfer, error) {
	var result *Transfer
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
			if err := s.releaseSegments(ctx, doc.Lines[idx].Segments); err != nil {
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

// AllocateLineFefo reserves source-warehouse stock for a line as segments.
// Transfers move bulk stock, so unshelved items are eligible. Existing
// segments are released first.
func (s *Service) AllocateLineFefo(ctx context.Context, docID id.ID, lineNo int) (*Transfer, error) {
	var result *Transfer
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

			if err := s.releaseSegments(ctx, line.Segments); err != nil {
				return err
			}

			reservations, err := s.allocator.Allocate(ctx, stock.AllocationRequest{
				WarehouseID: doc.SourceWarehouseID,
				ProductID:   line.ProductID,
				VariantID:   line.VariantID,
				Quantity:    line.Requested,
			})
			if err != nil {
				return err
			}

			segments := make([]Segment, 0, len(reservations))
			for _, res := range reservations {
				segments = append(segments, Segment{
					SegmentID:         id.New(),
					SourceStockItemID: res.StockItemID,
					ShippedQty:        res.Quantity,
				})
			}
			if err := doc.SetSegments(lineNo, segments); err != nil {
				return err
			}
			result = doc
			return s.save(ctx, doc)
		})
	})
	return result, err
}

// Ship consumes the segment reservations at the source: goods leave the
// warehouse, reserved and on-hand drop together, TransferOut entries are
// written.
func (s *Service) Ship(ctx context.Context, docID id.ID) (*Transfer, error) {
	var result *Transfer
	err := retry.DoWithConfig(ctx, s.retryCfg, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			doc, err := s.GetByID(ctx, docID)
			if err != nil {
				return err
			}
			if err := doc.CanShip(ctx); err != nil {
				return err
			}
			if err := doc.MarkShipped(); err != nil {
				return err
			}

			var entries []stock.LedgerEntry
			for i := range doc.Lines {
				line := doc.Lines[i]
				for _, seg := range line.Segments {
					item, err := s.stock.GetByID(ctx, seg.SourceStockItemID)
					if err != nil {
						return err
					}
					if err := item.Consume(seg.ShippedQty); err != nil {
						return err
					}
					if err := s.stock.Save(ctx, item); err != nil {
						return err
					}

					entry, err := stock.NewLedgerEntry(item, stock.MovementTransferOut,
						seg.ShippedQty, DocumentType, doc.ID, &line.LineID)
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
	logger.Info(ctx, "transfer shipped",
		"id", result.ID, "number", result.Number, "lines", len(result.Lines))
	return result, nil
}

// ReceiveOnSegment books qty of a shipped segment into the destination
// warehouse. The destination stock item carries the same product, lot and
// expiry as the source; it is created on first arrival. After each receipt
// the transfer recomputes completion.
func (s *Service) ReceiveOnSegment(ctx context.Context, docID, segmentID id.ID, qty types.Quantity) (*Transfer, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewValidation("receive quantity must be positive").
			WithDetail("quantity", qty.String())
	}

	var result *Transfer
	err := retry.DoWithConfig(ctx, s.retryCfg, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			doc, err := s.GetByID(ctx, docID)
			if err != nil {
				return err
			}
			if err := doc.CanReceive(); err != nil {
				return err
			}
			li, si, err := doc.FindSegment(segmentID)
			if err != nil {
				return err
			}
			seg := doc.Lines[li].Segments[si]
			if qty > seg.RemainingToReceive() {
				return apperror.NewValidation("receive quantity exceeds remaining in transit").
					WithDetail("quantity", qty.String()).
					WithDetail("remaining", seg.RemainingToReceive().String())
			}

			source, err := s.stock.GetByID(ctx, seg.SourceStockItemID)
			if err != nil {
				return err
			}
			dest, err := s.stock.FindOrCreate(ctx, stock.ItemKey{
				ProductID:   source.ProductID,
				VariantID:   source.VariantID,
				WarehouseID: doc.DestWarehouseID,
				LotNumber:   source.LotNumber,
				ExpiryDate:  source.ExpiryDate,
			})
			if err != nil {
				return err
			}
			if err := dest.Increase(qty); err != nil {
				return err
			}
			if source.LastUnitCost != nil {
				dest.RecordUnitCost(*source.LastUnitCost)
			}
			if err := s.stock.Save(ctx, dest); err != nil {
				return err
			}

			entry, err := stock.NewLedgerEntry(dest, stock.MovementTransferIn,
				qty, DocumentType, doc.ID, &doc.Lines[li].LineID)
			if err != nil {
				return err
			}
			if err := s.stock.Append(ctx, []stock.LedgerEntry{entry.WithUnitCost(dest.LastUnitCost)}); err != nil {
				return err
			}

			doc.Lines[li].Segments[si].ReceivedQty += qty
			doc.RecomputeCompletion()
			doc.Touch()

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
	logger.Info(ctx, "transfer segment received",
		"id", result.ID, "segment_id", segmentID, "quantity", qty, "status", result.Status)
	return result, nil
}

// Cancel releases all segment reservations and cancels the draft.
// Idempotent on already canceled documents.
func (s *Service) Cancel(ctx context.Context, docID id.ID) (*Transfer, error) {
	var result *Transfer
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
				if err := s.releaseSegments(ctx, doc.Lines[i].Segments); err != nil {
					return err
				}
				doc.Lines[i].Segments = nil
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

// DeleteDraft removes a draft transfer with its lines, releasing any
// source reservations first. Shipped and canceled documents stay forever.
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
				if err := s.releaseSegments(ctx, doc.Lines[i].Segments); err != nil {
					return err
				}
			}
			return s.repo.Delete(ctx, docID)
		})
	})
}

// releaseSegments returns reserved quantities to available at the source.
func (s *Service) releaseSegments(ctx context.Context, segments []Segment) error {
	for _, seg := range segments {
		item, err := s.stock.GetByID(ctx, seg.SourceStockItemID)
		if err != nil {
			return err
		}
		if err := item.Release(seg.ShippedQty); err != nil {
			return err
		}
		if err := s.stock.Save(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// List retrieves transfers with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Transfer], error) {
	return s.repo.List(ctx, filter)
}
