package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/id"
	"stockcore/internal/domain"
	"stockcore/internal/domain/documents/receipt"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	receiptsTable     = "doc_receipts"
	receiptLinesTable = "doc_receipts_lines"
)

var _ receipt.Repository = (*ReceiptRepo)(nil)

// ReceiptRepo implements receipt.Repository.
type ReceiptRepo struct {
	*BaseDocumentRepo[*receipt.Receipt]
}

// NewReceiptRepo creates the receipt repository.
func NewReceiptRepo(txManager *postgres.TxManager) *ReceiptRepo {
	return &ReceiptRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			receiptsTable,
			postgres.ExtractDBColumns[receipt.Receipt](),
			func() *receipt.Receipt { return &receipt.Receipt{} },
		),
	}
}

// GetLines retrieves the receipt lines in line order.
func (r *ReceiptRepo) GetLines(ctx context.Context, docID id.ID) ([]receipt.Line, error) {
	q := r.Builder().
		Select(
			"line_id", "line_no", "product_id", "variant_id",
			"quantity", "lot_number", "expiry_date", "unit_cost",
		).
		From(receiptLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []receipt.Line
	querier := r.TxManager().GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	return lines, nil
}

// SaveLines rewrites the receipt lines (delete existing, insert new).
func (r *ReceiptRepo) SaveLines(ctx context.Context, docID id.ID, lines []receipt.Line) error {
	if err := r.deleteLines(ctx, receiptLinesTable, docID); err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(receiptLinesTable).
		Columns(
			"line_id", "document_id", "line_no", "product_id", "variant_id",
			"quantity", "lot_number", "expiry_date", "unit_cost",
		)
	for _, line := range lines {
		q = q.Values(
			line.LineID, docID, line.LineNo, line.ProductID, line.VariantID,
			line.Quantity, line.LotNumber, line.ExpiryDate, line.UnitCost,
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

// List retrieves receipts with filtering and pagination.
func (r *ReceiptRepo) List(ctx context.Context, filter receipt.ListFilter) (domain.ListResult[*receipt.Receipt], error) {
	result := domain.ListResult[*receipt.Receipt]{
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
