package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchInserter performs bulk inserts over the COPY protocol. Used for big
// ledger writes where row-at-a-time INSERTs would dominate posting latency.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice bulk-inserts rows into table. Requires an active
// transaction in ctx: COPY must roll back with the posting it belongs to.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	t := b.txManager.GetTx(ctx)
	if t == nil {
		return 0, fmt.Errorf("CopyFromSlice requires transaction context")
	}
	return t.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}
