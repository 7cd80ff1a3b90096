// Package store holds the persistence layer: the append-only, hash-chained
// audit trail every pipeline stage writes to, and the role assignment stores
// the policy engine reads from.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrChainBroken means the recomputed hash chain disagrees with the
	// stored one; the trail has been tampered with or corrupted.
	ErrChainBroken = errors.New("audit hash chain is broken")

	// ErrEntryNotFound is returned by lookups that match nothing.
	ErrEntryNotFound = errors.New("audit entry not found")
)

// AuditEntry is one immutable record in the trail. EntryHash covers the
// entry's content plus PreviousHash, chaining each entry to the one before;
// the first entry chains to "genesis".
type AuditEntry struct {
	EntryID       string          `json:"entry_id"`
	Sequence      uint64          `json:"sequence"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Stage         string          `json:"stage"`
	Payload       json.RawMessage `json:"payload"`
	PayloadHash   string          `json:"payload_hash"`
	PreviousHash  string          `json:"previous_hash"`
	EntryHash     string          `json:"entry_hash"`
}

// AuditStore is the append-only trail. Implementations never update or
// delete entries.
type AuditStore interface {
	// Append records a stage transition for a request. The payload is
	// serialized to JSON and hashed into the chain.
	Append(ctx context.Context, correlationID, stage string, payload any) (*AuditEntry, error)

	// ByCorrelation returns every entry for the request, in append order.
	ByCorrelation(ctx context.Context, correlationID string) ([]*AuditEntry, error)

	// LastByStage returns the most recent entry for the request at the
	// given stage, or ErrEntryNotFound.
	LastByStage(ctx context.Context, correlationID, stage string) (*AuditEntry, error)

	// VerifyChain recomputes the full hash chain and reports the first
	// break, if any.
	VerifyChain(ctx context.Context) error
}

const genesisHash = "genesis"

// entryChainHash is the hashable projection of an entry. EntryID is
// excluded: it is a random identifier, not content.
type entryChainHash struct {
	Sequence      uint64    `json:"sequence"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	Stage         string    `json:"stage"`
	PayloadHash   string    `json:"payload_hash"`
	PreviousHash  string    `json:"previous_hash"`
}
