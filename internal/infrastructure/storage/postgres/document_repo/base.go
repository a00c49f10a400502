// Package document_repo provides the PostgreSQL repositories for stock
// documents. Each document type stores its header row plus a lines table
// keyed by document id; lines are rewritten wholesale on save.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/infrastructure/storage/postgres"
)

// BaseDocumentRepo provides the header CRUD shared by all document types.
// Concrete repos embed it and add their lines handling and List.
type BaseDocumentRepo[T any] struct {
	txManager  *postgres.TxManager
	tableName  string
	selectCols []string
	newFn      func() T
}

// NewBaseDocumentRepo creates the shared header repository.
func NewBaseDocumentRepo[T any](
	txManager *postgres.TxManager,
	tableName string,
	selectCols []string,
	newFn func() T,
) *BaseDocumentRepo[T] {
	return &BaseDocumentRepo[T]{
		txManager:  txManager,
		tableName:  tableName,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

// Builder returns a squirrel builder with PostgreSQL placeholders.
func (r *BaseDocumentRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// TxManager exposes the manager for concrete repos.
func (r *BaseDocumentRepo[T]) TxManager() *postgres.TxManager {
	return r.txManager
}

// Create inserts the header row.
func (r *BaseDocumentRepo[T]) Create(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	q := r.Builder().Insert(r.tableName).SetMap(filtered)
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}
	return nil
}

// Update writes the header under the optimistic version check. Services
// bump the version in memory before saving, so the row is written only
// while the stored version is still below the incoming one.
func (r *BaseDocumentRepo[T]) Update(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	entityID, ok := data["id"]
	if !ok {
		return fmt.Errorf("entity has no 'id' field")
	}
	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("entity has no 'version' field")
	}

	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if col == "id" || col == "created_at" {
			continue
		}
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}
	filtered["updated_at"] = squirrel.Expr("NOW()")

	q := r.Builder().
		Update(r.tableName).
		SetMap(filtered).
		Where(squirrel.Eq{"id": entityID}).
		Where(squirrel.Lt{"version": version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(r.tableName, entityID)
	}
	return nil
}

// Delete removes a draft document and its lines. The services only call
// this for drafts; posted documents stay forever.
func (r *BaseDocumentRepo[T]) Delete(ctx context.Context, entityID id.ID) error {
	querier := r.txManager.GetQuerier(ctx)

	linesSQL := "DELETE FROM " + r.tableName + "_lines WHERE document_id = $1"
	if _, err := querier.Exec(ctx, linesSQL, entityID); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}

	q := r.Builder().Delete(r.tableName).Where(squirrel.Eq{"id": entityID})
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.tableName, entityID.String())
	}
	return nil
}

func (r *BaseDocumentRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.selectCols...).From(r.tableName)
}

// GetByID retrieves the header by id.
func (r *BaseDocumentRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	entity := r.newFn()
	q := r.baseSelect().Where(squirrel.Eq{"id": entityID})

	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.tableName, entityID.String())
		}
		return entity, fmt.Errorf("get by id: %w", err)
	}
	return entity, nil
}

// GetByNumber retrieves the header by document number.
func (r *BaseDocumentRepo[T]) GetByNumber(ctx context.Context, number string) (T, error) {
	entity := r.newFn()
	q := r.baseSelect().Where(squirrel.Eq{"number": number})

	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.tableName, number)
		}
		return entity, fmt.Errorf("get by number: %w", err)
	}
	return entity, nil
}

// listHeaders runs the filtered header query plus a count with the same
// conditions. orderBy uses the API convention: a leading '-' means
// descending.
func (r *BaseDocumentRepo[T]) listHeaders(ctx context.Context, conds []squirrel.Sqlizer, orderBy string, limit, offset int) ([]T, int64, error) {
	querier := r.txManager.GetQuerier(ctx)

	countQ := r.Builder().Select("COUNT(*)").From(r.tableName)
	for _, c := range conds {
		countQ = countQ.Where(c)
	}
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int64
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", r.tableName, err)
	}

	q := r.baseSelect().OrderBy(parseOrderBy(orderBy))
	for _, c := range conds {
		q = q.Where(c)
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	var entities []T
	if err := pgxscan.Select(ctx, querier, &entities, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", r.tableName, err)
	}
	return entities, total, nil
}

func parseOrderBy(orderBy string) string {
	if orderBy == "" {
		return "created_at DESC"
	}
	if orderBy[0] == '-' {
		return orderBy[1:] + " DESC"
	}
	return orderBy + " ASC"
}

// deleteLines clears all lines of a document before reinsert.
func (r *BaseDocumentRepo[T]) deleteLines(ctx context.Context, linesTable string, docID id.ID) error {
	querier := r.txManager.GetQuerier(ctx)
	sql := "DELETE FROM " + linesTable + " WHERE document_id = $1"
	if _, err := querier.Exec(ctx, sql, docID); err != nil {
		return fmt.Errorf("delete existing lines: %w", err)
	}
	return nil
}
