package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-one/sovereign-core/pkg/canonicalize"
)

// MemoryAuditStore is the in-process AuditStore. It backs tests and
// single-node deployments that do not need the trail to survive restarts.
type MemoryAuditStore struct {
	mu        sync.RWMutex
	entries   []*AuditEntry
	byCorr    map[string][]*AuditEntry
	sequence  uint64
	chainHead string
	now       func() time.Time
}

// NewMemoryAuditStore returns an empty store with its chain head at genesis.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{
		byCorr:    make(map[string][]*AuditEntry),
		chainHead: genesisHash,
		now:       time.Now,
	}
}

func (s *MemoryAuditStore) Append(ctx context.Context, correlationID, stage string, payload any) (*AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("audit: serialize payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence++
	entry := &AuditEntry{
		EntryID:       uuid.New().String(),
		Sequence:      s.sequence,
		Timestamp:     s.now().UTC(),
		CorrelationID: correlationID,
		Stage:         stage,
		Payload:       payloadBytes,
		PayloadHash:   canonicalize.HashBytes(payloadBytes),
		PreviousHash:  s.chainHead,
	}
	hash, err := chainHash(entry)
	if err != nil {
		s.sequence--
		return nil, err
	}
	entry.EntryHash = hash
	s.chainHead = hash

	s.entries = append(s.entries, entry)
	s.byCorr[correlationID] = append(s.byCorr[correlationID], entry)
	return entry, nil
}

func (s *MemoryAuditStore) ByCorrelation(ctx context.Context, correlationID string) ([]*AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.byCorr[correlationID]
	out := make([]*AuditEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *MemoryAuditStore) LastByStage(ctx context.Context, correlationID, stage string) (*AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.byCorr[correlationID]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Stage == stage {
			return entries[i], nil
		}
	}
	return nil, ErrEntryNotFound
}

func (s *MemoryAuditStore) VerifyChain(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return verifyEntries(s.entries)
}

// Size returns the number of entries in the trail.
func (s *MemoryAuditStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func chainHash(entry *AuditEntry) (string, error) {
	data, err := json.Marshal(entryChainHash{
		Sequence:      entry.Sequence,
		Timestamp:     entry.Timestamp,
		CorrelationID: entry.CorrelationID,
		Stage:         entry.Stage,
		PayloadHash:   entry.PayloadHash,
		PreviousHash:  entry.PreviousHash,
	})
	if err != nil {
		return "", fmt.Errorf("audit: marshal entry for hashing: %w", err)
	}
	return canonicalize.HashBytes(data), nil
}

func verifyEntries(entries []*AuditEntry) error {
	expectedPrev := genesisHash
	for i, entry := range entries {
		if entry.PreviousHash != expectedPrev {
			return fmt.Errorf("%w: entry %d has previous_hash %s, expected %s",
				ErrChainBroken, i, entry.PreviousHash, expectedPrev)
		}
		computed, err := chainHash(entry)
		if err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrChainBroken, i, err)
		}
		if computed != entry.EntryHash {
			return fmt.Errorf("%w: entry %d hash mismatch (computed %s, stored %s)",
				ErrChainBroken, i, computed, entry.EntryHash)
		}
		expectedPrev = entry.EntryHash
	}
	return nil
}
