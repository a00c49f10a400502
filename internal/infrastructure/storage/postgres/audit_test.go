package postgres

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/id"
)

func TestAuditSnapshot_SmallStaysPlain(t *testing.T) {
	svc, err := NewAuditService(nil)
	require.NoError(t, err)

	doc := map[string]string{"number": "RC-2026-00001"}
	entry, err := svc.buildEntry(context.Background(), "receipt", id.New(), AuditActionReceive, doc)
	require.NoError(t, err)

	assert.Equal(t, CompressionNone, entry.CompressionAlgo)
	assert.Nil(t, entry.SnapshotCompressed)
	assert.JSONEq(t, `{"number":"RC-2026-00001"}`, string(entry.Snapshot))

	raw, err := svc.Decompress(entry)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(entry.Snapshot), raw)
}

func TestAuditSnapshot_LargeRoundTripsThroughZstd(t *testing.T) {
	svc, err := NewAuditService(nil)
	require.NoError(t, err)

	doc := map[string]string{"note": strings.Repeat("line contents ", 2048)}
	want, err := json.Marshal(doc)
	require.NoError(t, err)

	entry, err := svc.buildEntry(context.Background(), "issue", id.New(), AuditActionPost, doc)
	require.NoError(t, err)

	assert.Equal(t, CompressionZstd, entry.CompressionAlgo)
	assert.Nil(t, entry.Snapshot)
	assert.NotEmpty(t, entry.SnapshotCompressed)
	assert.Less(t, len(entry.SnapshotCompressed), len(want))

	raw, err := svc.Decompress(entry)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(want), raw)
}
