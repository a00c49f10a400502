package stock_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/domain/stock"
	"stockcore/internal/infrastructure/storage/postgres"
)

const ledgerTable = "stk_ledger"

var ledgerColumns = []string{
	"id", "product_id", "variant_id", "warehouse_id", "lot_number",
	"expiry_date", "stock_item_id", "quantity", "movement", "unit_cost",
	"document_type", "document_id", "line_id", "note", "recorded_at",
}

var _ stock.LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo implements stock.LedgerRepository. The table is append-only;
// no UPDATE or DELETE statement exists in this file on purpose.
type LedgerRepo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

// NewLedgerRepo creates the ledger repository.
func NewLedgerRepo(txManager *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts entries. Inside a transaction the COPY protocol is used;
// postings always run in one, so the fallback only serves tooling.
func (r *LedgerRepo) Append(ctx context.Context, entries []stock.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if tx := r.txManager.GetTx(ctx); tx != nil {
		rows := make([][]any, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, ledgerRow(e))
		}
		if _, err := r.inserter.CopyFromSlice(ctx, ledgerTable, ledgerColumns, rows); err != nil {
			return fmt.Errorf("copy ledger entries: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(ledgerTable).Columns(ledgerColumns...)
	for _, e := range entries {
		q = q.Values(ledgerRow(e)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert ledger entries: %w", err)
	}
	return nil
}

func ledgerRow(e stock.LedgerEntry) []any {
	return []any{
		e.ID, e.ProductID, e.VariantID, e.WarehouseID, e.LotNumber,
		e.ExpiryDate, e.StockItemID, e.Quantity, e.Movement, e.UnitCost,
		e.DocumentType, e.DocumentID, e.LineID, e.Note, e.RecordedAt,
	}
}

// List returns entries matching the filter, newest first.
func (r *LedgerRepo) List(ctx context.Context, f stock.LedgerFilter) ([]stock.LedgerEntry, error) {
	q := r.builder.Select(ledgerColumns...).
		From(ledgerTable).
		OrderBy("recorded_at DESC", "id DESC")

	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.VariantID != nil {
		q = q.Where(squirrel.Eq{"variant_id": *f.VariantID})
	}
	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *f.WarehouseID})
	}
	if f.Movement != nil {
		q = q.Where(squirrel.Eq{"movement": *f.Movement})
	}
	if f.DocumentID != nil {
		q = q.Where(squirrel.Eq{"document_id": *f.DocumentID})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"recorded_at": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.Lt{"recorded_at": *f.To})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []stock.LedgerEntry
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

// Turnover aggregates the period in one pass: entries before the period
// start fold into the opening balance, entries inside it split into inbound
// and outbound. The period bounds are referenced positionally inside the
// aggregate filters, so the query is written by hand.
func (r *LedgerRepo) Turnover(ctx context.Context, f stock.TurnoverFilter) (stock.Turnover, error) {
	result := stock.Turnover{WarehouseID: f.WarehouseID, ProductID: f.ProductID}

	sqlStr := `
		SELECT
			COALESCE(SUM(quantity) FILTER (WHERE recorded_at < $1), 0),
			COALESCE(SUM(quantity) FILTER (WHERE recorded_at >= $1 AND recorded_at < $2 AND quantity > 0), 0),
			COALESCE(SUM(-quantity) FILTER (WHERE recorded_at >= $1 AND recorded_at < $2 AND quantity < 0), 0)
		FROM ` + ledgerTable + `
		WHERE ($3::uuid IS NULL OR warehouse_id = $3)
		  AND ($4::uuid IS NULL OR product_id = $4)
	`
	args := []any{f.From, f.To, f.WarehouseID, f.ProductID}

	querier := r.txManager.GetQuerier(ctx)
	row := querier.QueryRow(ctx, sqlStr, args...)
	if err := row.Scan(&result.OpeningBalance, &result.Inbound, &result.Outbound); err != nil {
		return result, fmt.Errorf("turnover: %w", err)
	}

	result.ClosingBalance = result.OpeningBalance + result.Inbound - result.Outbound
	return result, nil
}
