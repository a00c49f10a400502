package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain"
	"stockcore/internal/domain/documents/issue"
	"stockcore/internal/domain/stock"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	issuesTable     = "doc_issues"
	issueLinesTable = "doc_issues_lines"
)

var _ issue.Repository = (*IssueRepo)(nil)

// IssueRepo implements issue.Repository. Line allocations are stored as a
// jsonb column on the line row: they are always read and written with the
// line and never queried on their own.
type IssueRepo struct {
	*BaseDocumentRepo[*issue.Issue]
}

// NewIssueRepo creates the issue repository.
func NewIssueRepo(txManager *postgres.TxManager) *IssueRepo {
	return &IssueRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			issuesTable,
			postgres.ExtractDBColumns[issue.Issue](),
			func() *issue.Issue { return &issue.Issue{} },
		),
	}
}

// issueLineRow maps the line row; allocations come back from jsonb.
type issueLineRow struct {
	LineID      id.ID               `db:"line_id"`
	LineNo      int                 `db:"line_no"`
	ProductID   id.ID               `db:"product_id"`
	VariantID   *id.ID              `db:"variant_id"`
	Requested   types.Quantity      `db:"requested"`
	Allocations []stock.Reservation `db:"allocations"`
}

// GetLines retrieves the issue lines with their allocations.
func (r *IssueRepo) GetLines(ctx context.Context, docID id.ID) ([]issue.Line, error) {
	q := r.Builder().
		Select("line_id", "line_no", "product_id", "variant_id", "requested", "allocations").
		From(issueLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []issueLineRow
	querier := r.TxManager().GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	lines := make([]issue.Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, issue.Line{
			LineID:      row.LineID,
			LineNo:      row.LineNo,
			ProductID:   row.ProductID,
			VariantID:   row.VariantID,
			Requested:   row.Requested,
			Allocations: row.Allocations,
		})
	}
	return lines, nil
}

// SaveLines rewrites the issue lines with their allocations.
func (r *IssueRepo) SaveLines(ctx context.Context, docID id.ID, lines []issue.Line) error {
	if err := r.deleteLines(ctx, issueLinesTable, docID); err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(issueLinesTable).
		Columns("line_id", "document_id", "line_no", "product_id", "variant_id", "requested", "allocations")
	for _, line := range lines {
		q = q.Values(
			line.LineID, docID, line.LineNo, line.ProductID, line.VariantID,
			line.Requested, line.Allocations,
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

// List retrieves issues with filtering and pagination.
func (r *IssueRepo) List(ctx context.Context, filter issue.ListFilter) (domain.ListResult[*issue.Issue], error) {
	result := domain.ListResult[*issue.Issue]{
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
