package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAuditAppendChains(t *testing.T) {
	s := NewMemoryAuditStore()
	ctx := context.Background()

	first, err := s.Append(ctx, "corr-1", "received", map[string]any{"intent": "delete the task"})
	require.NoError(t, err)
	assert.Equal(t, genesisHash, first.PreviousHash)
	assert.Equal(t, uint64(1), first.Sequence)
	assert.Contains(t, first.EntryHash, "sha256:")

	second, err := s.Append(ctx, "corr-1", "synthesized", map[string]any{"prompt_bytes": 2048})
	require.NoError(t, err)
	assert.Equal(t, first.EntryHash, second.PreviousHash)
	assert.Equal(t, uint64(2), second.Sequence)

	require.NoError(t, s.VerifyChain(ctx))
}

func TestMemoryAuditByCorrelation(t *testing.T) {
	s := NewMemoryAuditStore()
	ctx := context.Background()

	_, err := s.Append(ctx, "corr-a", "received", nil)
	require.NoError(t, err)
	_, err = s.Append(ctx, "corr-b", "received", nil)
	require.NoError(t, err)
	_, err = s.Append(ctx, "corr-a", "returned", map[string]any{"approved": true})
	require.NoError(t, err)

	entries, err := s.ByCorrelation(ctx, "corr-a")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "received", entries[0].Stage)
	assert.Equal(t, "returned", entries[1].Stage)

	// Entries interleaved across requests still form one verifiable chain.
	require.NoError(t, s.VerifyChain(ctx))
}

func TestMemoryAuditLastByStage(t *testing.T) {
	s := NewMemoryAuditStore()
	ctx := context.Background()

	_, err := s.Append(ctx, "corr-1", "received", nil)
	require.NoError(t, err)

	_, err = s.LastByStage(ctx, "corr-1", "returned")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	_, err = s.Append(ctx, "corr-1", "returned", map[string]any{"approved": false})
	require.NoError(t, err)

	entry, err := s.LastByStage(ctx, "corr-1", "returned")
	require.NoError(t, err)
	assert.Equal(t, "returned", entry.Stage)
}

func TestMemoryAuditDetectsTampering(t *testing.T) {
	s := NewMemoryAuditStore()
	ctx := context.Background()

	_, err := s.Append(ctx, "corr-1", "received", map[string]any{"intent": "original"})
	require.NoError(t, err)
	_, err = s.Append(ctx, "corr-1", "returned", nil)
	require.NoError(t, err)

	s.entries[0].Stage = "rewritten"

	err = s.VerifyChain(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChainBroken)
}

func TestMemoryAuditCancelledContext(t *testing.T) {
	s := NewMemoryAuditStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Append(ctx, "corr-1", "received", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSQLiteAuditRoundTrip(t *testing.T) {
	s, err := OpenSQLiteAuditStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	first, err := s.Append(ctx, "corr-1", "received", map[string]any{"intent": "add a task"})
	require.NoError(t, err)
	assert.Equal(t, genesisHash, first.PreviousHash)

	second, err := s.Append(ctx, "corr-1", "returned", map[string]any{"approved": true})
	require.NoError(t, err)
	assert.Equal(t, first.EntryHash, second.PreviousHash)

	entries, err := s.ByCorrelation(ctx, "corr-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.EntryHash, entries[0].EntryHash)
	assert.JSONEq(t, `{"approved": true}`, string(entries[1].Payload))

	require.NoError(t, s.VerifyChain(ctx))

	entry, err := s.LastByStage(ctx, "corr-1", "returned")
	require.NoError(t, err)
	assert.Equal(t, second.EntryID, entry.EntryID)

	_, err = s.LastByStage(ctx, "corr-missing", "returned")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}
