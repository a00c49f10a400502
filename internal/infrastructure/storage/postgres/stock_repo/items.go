// Package stock_repo provides the PostgreSQL repositories for stock items
// and the stock ledger.
package stock_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/stock"
	"stockcore/internal/infrastructure/storage/postgres"
)

const itemsTable = "stk_items"

var _ stock.ItemRepository = (*ItemRepo)(nil)

// ItemRepo implements stock.ItemRepository.
type ItemRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
	cols      []string
}

// NewItemRepo creates the stock item repository.
func NewItemRepo(txManager *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		cols:      postgres.ExtractDBColumns[stock.Item](),
	}
}

// Create inserts a new item row.
func (r *ItemRepo) Create(ctx context.Context, item *stock.Item) error {
	data := postgres.StructToMap(item)
	filtered := make(map[string]any, len(r.cols))
	for _, col := range r.cols {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	q := r.builder.Insert(itemsTable).SetMap(filtered)
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		// Unique violation (23505) on the identity index means another
		// transaction created this item first. Surfaced as a conflict so
		// the posting retry loop re-runs and finds the existing row.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewConcurrentModification(itemsTable, item.ID.String()).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", itemsTable, err)
	}
	return nil
}

// GetByID retrieves an item by surrogate id.
func (r *ItemRepo) GetByID(ctx context.Context, itemID id.ID) (*stock.Item, error) {
	item := &stock.Item{}
	q := r.baseSelect().Where(squirrel.Eq{"id": itemID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock_item", itemID.String())
		}
		return nil, fmt.Errorf("get by id: %w", err)
	}
	return item, nil
}

// GetByKey retrieves the unshelved row for an identity tuple. A partial
// unique index on (product, variant, warehouse, lot, expiry) WHERE shelf IS
// NULL guarantees at most one.
func (r *ItemRepo) GetByKey(ctx context.Context, key stock.ItemKey) (*stock.Item, error) {
	item := &stock.Item{}
	q := r.baseSelect().
		Where(squirrel.Eq{
			"product_id":   key.ProductID,
			"warehouse_id": key.WarehouseID,
		}).
		Where("shelf IS NULL")
	q = whereNullable(q, "variant_id", key.VariantID)
	q = whereNullable(q, "lot_number", key.LotNumber)
	q = whereNullable(q, "expiry_date", key.ExpiryDate)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock_item", key.ProductID.String())
		}
		return nil, fmt.Errorf("get by key: %w", err)
	}
	return item, nil
}

// Update writes the mutated item. Guarded operations already bumped the
// version in memory, so the write lands only when the stored version is
// still below the one being written; zero rows affected means a concurrent
// posting won.
func (r *ItemRepo) Update(ctx context.Context, item *stock.Item) error {
	data := postgres.StructToMap(item)
	filtered := make(map[string]any, len(r.cols))
	for _, col := range r.cols {
		if col == "id" || col == "created_at" {
			continue
		}
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}
	filtered["updated_at"] = squirrel.Expr("NOW()")

	q := r.builder.Update(itemsTable).
		SetMap(filtered).
		Where(squirrel.Eq{"id": item.ID}).
		Where(squirrel.Lt{"version": item.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", itemsTable, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("stock_item", item.ID)
	}
	return nil
}

// ListCandidates returns allocation candidates in FEFO order: earliest
// expiry first, rows without expiry last, ties broken by id for
// deterministic allocation.
func (r *ItemRepo) ListCandidates(ctx context.Context, f stock.CandidateFilter) ([]*stock.Item, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{
			"product_id":   f.ProductID,
			"warehouse_id": f.WarehouseID,
		}).
		Where("on_hand - reserved - blocked > 0").
		OrderBy("expiry_date ASC NULLS LAST", "id ASC")
	q = whereNullable(q, "variant_id", f.VariantID)

	if f.RequireShelf {
		q = q.Where("shelf IS NOT NULL AND shelf <> ''")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*stock.Item
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return items, nil
}

// List returns items for reporting reads.
func (r *ItemRepo) List(ctx context.Context, f stock.ItemFilter) ([]*stock.Item, error) {
	q := r.baseSelect().OrderBy("id ASC")

	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *f.WarehouseID})
	}
	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.VariantID != nil {
		q = q.Where(squirrel.Eq{"variant_id": *f.VariantID})
	}
	if f.OnlyNonZero {
		q = q.Where("(on_hand <> 0 OR reserved <> 0 OR blocked <> 0)")
	}
	if f.OnlyBlocked {
		q = q.Where("blocked > 0")
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

	var items []*stock.Item
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (r *ItemRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(r.cols...).From(itemsTable)
}

// whereNullable adds an equality condition that treats a nil pointer as
// IS NULL, matching the in-memory key comparison.
func whereNullable[T any](q squirrel.SelectBuilder, col string, v *T) squirrel.SelectBuilder {
	if v == nil {
		return q.Where(col + " IS NULL")
	}
	return q.Where(squirrel.Eq{col: *v})
}
