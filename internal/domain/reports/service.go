// Package reports provides read models over stock items and the ledger:
// on-hand summaries, movement history and turnover totals. It never writes.
package reports

import (
	"context"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/stock"
)

// OnHandRow is one line of the stock-on-hand report: a product position in a
// warehouse with the quantities split by state.
type OnHandRow struct {
	ProductID   id.ID          `json:"productId"`
	VariantID   *id.ID         `json:"variantId,omitempty"`
	WarehouseID id.ID          `json:"warehouseId"`
	LotNumber   *string        `json:"lotNumber,omitempty"`
	ExpiryDate  *time.Time     `json:"expiryDate,omitempty"`
	Shelf       *string        `json:"shelf,omitempty"`
	OnHand      types.Quantity `json:"onHand"`
	Reserved    types.Quantity `json:"reserved"`
	Blocked     types.Quantity `json:"blocked"`
	Available   types.Quantity `json:"available"`
}

// OnHandTotals aggregates the report rows.
type OnHandTotals struct {
	OnHand    types.Quantity `json:"onHand"`
	Reserved  types.Quantity `json:"reserved"`
	Blocked   types.Quantity `json:"blocked"`
	Available types.Quantity `json:"available"`
}

// OnHandReport is the stock-on-hand read model.
type OnHandReport struct {
	Rows   []OnHandRow  `json:"rows"`
	Totals OnHandTotals `json:"totals"`
}

// Service exposes the read models. It consumes the same repositories the
// posting side writes through, so reports see exactly what documents posted.
type Service struct {
	items  stock.ItemRepository
	ledger stock.LedgerRepository
}

func NewService(items stock.ItemRepository, ledger stock.LedgerRepository) *Service {
	return &Service{items: items, ledger: ledger}
}

// OnHand builds the stock-on-hand report for the filter.
func (s *Service) OnHand(ctx context.Context, f stock.ItemFilter) (*OnHandReport, error) {
	items, err := s.items.List(ctx, f)
	if err != nil {
		return nil, err
	}

	report := &OnHandReport{Rows: make([]OnHandRow, 0, len(items))}
	for _, item := range items {
		row := OnHandRow{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			WarehouseID: item.WarehouseID,
			LotNumber:   item.LotNumber,
			ExpiryDate:  item.ExpiryDate,
			Shelf:       item.Shelf,
			OnHand:      item.OnHand,
			Reserved:    item.Reserved,
			Blocked:     item.Blocked,
			Available:   item.Available(),
		}
		report.Rows = append(report.Rows, row)
		report.Totals.OnHand += row.OnHand
		report.Totals.Reserved += row.Reserved
		report.Totals.Blocked += row.Blocked
		report.Totals.Available += row.Available
	}
	return report, nil
}

// History returns ledger entries matching the filter, newest first.
func (s *Service) History(ctx context.Context, f stock.LedgerFilter) ([]stock.LedgerEntry, error) {
	return s.ledger.List(ctx, f)
}

// Turnover sums the period's inbound and outbound movement and derives the
// closing balance from the opening one.
func (s *Service) Turnover(ctx context.Context, f stock.TurnoverFilter) (stock.Turnover, error) {
	if f.To.Before(f.From) {
		return stock.Turnover{}, apperror.NewValidation("period end before start").
			WithDetail("from", f.From).
			WithDetail("to", f.To)
	}
	return s.ledger.Turnover(ctx, f)
}
