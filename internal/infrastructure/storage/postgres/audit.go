package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	corectx "stockcore/internal/core/context"
	"stockcore/internal/core/id"
)

// AuditAction is the lifecycle event being recorded.
type AuditAction string

const (
	AuditActionPost    AuditAction = "post"
	AuditActionReceive AuditAction = "receive"
	AuditActionApprove AuditAction = "approve"
	AuditActionShip    AuditAction = "ship"
)

// CompressionAlgo tags how the snapshot column is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry is one row of the posting audit log: which document changed
// state, when, and a JSON snapshot of the document at that moment.
type AuditEntry struct {
	ID                 id.ID           `db:"id"`
	DocumentType       string          `db:"document_type"`
	DocumentID         id.ID           `db:"document_id"`
	Action             AuditAction     `db:"action"`
	TraceID            string          `db:"trace_id"`
	Snapshot           json.RawMessage `db:"snapshot"`
	SnapshotCompressed []byte          `db:"snapshot_compressed"`
	CompressionAlgo    CompressionAlgo `db:"compression_algo"`
	RecordedAt         time.Time       `db:"recorded_at"`
}

// AuditService writes the posting audit log. Large snapshots are
// zstd-compressed; small ones stay as plain jsonb for queryability.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditService creates the audit writer.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024,
	}, nil
}

// Record serializes doc and writes an audit row. Intended to be registered
// as an after-post hook on document services.
func (s *AuditService) Record(ctx context.Context, docType string, docID id.ID, action AuditAction, doc any) error {
	entry, err := s.buildEntry(ctx, docType, docID, action, doc)
	if err != nil {
		return err
	}

	sql := `
		INSERT INTO stk_audit (
			id, document_type, document_id, action, trace_id,
			snapshot, snapshot_compressed, compression_algo, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	querier := s.txManager.GetQuerier(ctx)
	_, err = querier.Exec(ctx, sql,
		entry.ID, entry.DocumentType, entry.DocumentID, entry.Action,
		entry.TraceID, entry.Snapshot, entry.SnapshotCompressed,
		entry.CompressionAlgo, entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// buildEntry serializes doc into an audit row, compressing snapshots
// over the threshold.
func (s *AuditService) buildEntry(ctx context.Context, docType string, docID id.ID, action AuditAction, doc any) (AuditEntry, error) {
	snapshot, err := json.Marshal(doc)
	if err != nil {
		return AuditEntry{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	entry := AuditEntry{
		ID:              id.New(),
		DocumentType:    docType,
		DocumentID:      docID,
		Action:          action,
		TraceID:         corectx.GetTraceID(ctx),
		Snapshot:        snapshot,
		CompressionAlgo: CompressionNone,
		RecordedAt:      time.Now().UTC(),
	}

	if len(entry.Snapshot) > s.compressThreshold {
		entry.SnapshotCompressed = s.encoder.EncodeAll(entry.Snapshot, nil)
		entry.Snapshot = nil
		entry.CompressionAlgo = CompressionZstd
	}
	return entry, nil
}

// Decompress restores a compressed snapshot for readers.
func (s *AuditService) Decompress(entry AuditEntry) (json.RawMessage, error) {
	switch entry.CompressionAlgo {
	case CompressionZstd:
		raw, err := s.decoder.DecodeAll(entry.SnapshotCompressed, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress snapshot: %w", err)
		}
		return raw, nil
	default:
		return entry.Snapshot, nil
	}
}
