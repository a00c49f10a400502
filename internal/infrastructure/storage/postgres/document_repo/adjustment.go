package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/id"
	"stockcore/internal/domain"
	"stockcore/internal/domain/documents/adjustment"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	adjustmentsTable     = "doc_adjustments"
	adjustmentLinesTable = "doc_adjustments_lines"
)

var _ adjustment.Repository = (*AdjustmentRepo)(nil)

// AdjustmentRepo implements adjustment.Repository.
type AdjustmentRepo struct {
	*BaseDocumentRepo[*adjustment.Adjustment]
}

// NewAdjustmentRepo creates the adjustment repository.
func NewAdjustmentRepo(txManager *postgres.TxManager) *AdjustmentRepo {
	return &AdjustmentRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			adjustmentsTable,
			postgres.ExtractDBColumns[adjustment.Adjustment](),
			func() *adjustment.Adjustment { return &adjustment.Adjustment{} },
		),
	}
}

// GetLines retrieves the adjustment lines in line order.
func (r *AdjustmentRepo) GetLines(ctx context.Context, docID id.ID) ([]adjustment.Line, error) {
	q := r.Builder().
		Select(
			"line_id", "line_no", "product_id", "variant_id",
			"lot_number", "expiry_date", "qty_delta",
		).
		From(adjustmentLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []adjustment.Line
	querier := r.TxManager().GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	return lines, nil
}

// SaveLines rewrites the adjustment lines.
func (r *AdjustmentRepo) SaveLines(ctx context.Context, docID id.ID, lines []adjustment.Line) error {
	if err := r.deleteLines(ctx, adjustmentLinesTable, docID); err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(adjustmentLinesTable).
		Columns(
			"line_id", "document_id", "line_no", "product_id", "variant_id",
			"lot_number", "expiry_date", "qty_delta",
		)
	for _, line := range lines {
		q = q.Values(
			line.LineID, docID, line.LineNo, line.ProductID, line.VariantID,
			line.LotNumber, line.ExpiryDate, line.QtyDelta,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}

	querier := r.TxManager().GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}
	return nil
}

// List retrieves adjustments with filtering and pagination.
func (r *AdjustmentRepo) List(ctx context.Context, filter adjustment.ListFilter) (domain.ListResult[*adjustment.Adjustment], error) {
	result := domain.ListResult[*adjustment.Adjustment]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	var conds []squirrel.Sqlizer
	if filter.WarehouseID != nil {
		conds = append(conds, squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.Status != nil {
		conds = append(conds, squirrel.Eq{"status": *filter.Status})
	}
	if filter.ReasonCode != nil {
		conds = append(conds, squirrel.Eq{"reason_code": *filter.ReasonCode})
	}
	if filter.DateFrom != nil {
		conds = append(conds, squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		conds = append(conds, squirrel.LtOrEq{"date": *filter.DateTo})
	}
	if filter.Search != "" {
		conds = append(conds, squirrel.ILike{"number": "%" + filter.Search + "%"})
	}

	docs, total, err := r.listHeaders(ctx, conds, filter.OrderBy, filter.Limit, filter.Offset)
	if err != nil {
		return result, err
	}
	result.Items = docs
	result.TotalCount = total
	return result, nil
}
