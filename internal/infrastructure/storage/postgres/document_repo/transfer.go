package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain"
	"stockcore/internal/domain/documents/transfer"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	transfersTable     = "doc_transfers"
	transferLinesTable = "doc_transfers_lines"
)

var _ transfer.Repository = (*TransferRepo)(nil)

// TransferRepo implements transfer.Repository. Segments are stored as a
// jsonb column on the line row, same as issue allocations.
type TransferRepo struct {
	*BaseDocumentRepo[*transfer.Transfer]
}

// NewTransferRepo creates the transfer repository.
func NewTransferRepo(txManager *postgres.TxManager) *TransferRepo {
	return &TransferRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			transfersTable,
			postgres.ExtractDBColumns[transfer.Transfer](),
			func() *transfer.Transfer { return &transfer.Transfer{} },
		),
	}
}

type transferLineRow struct {
	LineID    id.ID              `db:"line_id"`
	LineNo    int                `db:"line_no"`
	ProductID id.ID              `db:"product_id"`
	VariantID *id.ID             `db:"variant_id"`
	Requested types.Quantity     `db:"requested"`
	Segments  []transfer.Segment `db:"segments"`
}

// GetLines retrieves the transfer lines with their segments.
func (r *TransferRepo) GetLines(ctx context.Context, docID id.ID) ([]transfer.Line, error) {
	q := r.Builder().
		Select("line_id", "line_no", "product_id", "variant_id", "requested", "segments").
		From(transferLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []transferLineRow
	querier := r.TxManager().GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	lines := make([]transfer.Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, transfer.Line{
			LineID:    row.LineID,
			LineNo:    row.LineNo,
			ProductID: row.ProductID,
			VariantID: row.VariantID,
			Requested: row.Requested,
			Segments:  row.Segments,
		})
	}
	return lines, nil
}

// SaveLines rewrites the transfer lines with their segments.
func (r *TransferRepo) SaveLines(ctx context.Context, docID id.ID, lines []transfer.Line) error {
	if err := r.deleteLines(ctx, transferLinesTable, docID); err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(transferLinesTable).
		Columns("line_id", "document_id", "line_no", "product_id", "variant_id", "requested", "segments")
	for _, line := range lines {
		q = q.Values(
			line.LineID, docID, line.LineNo, line.ProductID, line.VariantID,
			line.Requested, line.Segments,
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

// List retrieves transfers with filtering and pagination.
func (r *TransferRepo) List(ctx context.Context, filter transfer.ListFilter) (domain.ListResult[*transfer.Transfer], error) {
	result := domain.ListResult[*transfer.Transfer]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	var conds []squirrel.Sqlizer
	if filter.SourceWarehouseID != nil {
		conds = append(conds, squirrel.Eq{"source_warehouse_id": *filter.SourceWarehouseID})
	}
	if filter.DestWarehouseID != nil {
		conds = append(conds, squirrel.Eq{"dest_warehouse_id": *filter.DestWarehouseID})
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
