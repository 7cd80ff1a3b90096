package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-one/sovereign-core/pkg/canonicalize"

	_ "modernc.org/sqlite"
)

// SQLiteAuditStore persists the trail in SQLite so it survives restarts.
// The chain head is recovered from the last row at open time; appends are
// serialized by a mutex because the chain has a single head.
type SQLiteAuditStore struct {
	db        *sql.DB
	mu        sync.Mutex
	sequence  uint64
	chainHead string
	now       func() time.Time
}

// OpenSQLiteAuditStore opens (and migrates) the trail at path. Use
// ":memory:" for an ephemeral store.
func OpenSQLiteAuditStore(path string) (*SQLiteAuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite: %w", err)
	}
	s := &SQLiteAuditStore{db: db, chainHead: genesisHash, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.loadHead(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteAuditStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_entries (
		entry_id TEXT PRIMARY KEY,
		sequence INTEGER NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		correlation_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		payload JSON NOT NULL,
		payload_hash TEXT NOT NULL,
		previous_hash TEXT NOT NULL,
		entry_hash TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_correlation ON audit_entries (correlation_id, sequence);`
	_, err := s.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("audit: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteAuditStore) loadHead() error {
	row := s.db.QueryRowContext(context.Background(),
		`SELECT sequence, entry_hash FROM audit_entries ORDER BY sequence DESC LIMIT 1`)
	var seq uint64
	var head string
	switch err := row.Scan(&seq, &head); {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("audit: load chain head: %w", err)
	}
	s.sequence = seq
	s.chainHead = head
	return nil
}

func (s *SQLiteAuditStore) Append(ctx context.Context, correlationID, stage string, payload any) (*AuditEntry, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("audit: serialize payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &AuditEntry{
		EntryID:       uuid.New().String(),
		Sequence:      s.sequence + 1,
		Timestamp:     s.now().UTC(),
		CorrelationID: correlationID,
		Stage:         stage,
		Payload:       payloadBytes,
		PayloadHash:   canonicalize.HashBytes(payloadBytes),
		PreviousHash:  s.chainHead,
	}
	hash, err := chainHash(entry)
	if err != nil {
		return nil, err
	}
	entry.EntryHash = hash

	_, err = s.db.ExecContext(ctx, `INSERT INTO audit_entries (
		entry_id, sequence, timestamp, correlation_id, stage, payload, payload_hash, previous_hash, entry_hash
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EntryID, entry.Sequence, entry.Timestamp.Format(time.RFC3339Nano),
		entry.CorrelationID, entry.Stage, string(entry.Payload),
		entry.PayloadHash, entry.PreviousHash, entry.EntryHash,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: insert entry: %w", err)
	}
	s.sequence = entry.Sequence
	s.chainHead = entry.EntryHash
	return entry, nil
}

func (s *SQLiteAuditStore) ByCorrelation(ctx context.Context, correlationID string) ([]*AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntries+
		` WHERE correlation_id = ? ORDER BY sequence ASC`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("audit: query by correlation: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

func (s *SQLiteAuditStore) LastByStage(ctx context.Context, correlationID, stage string) (*AuditEntry, error) {
	row := s.db.QueryRowContext(ctx, selectEntries+
		` WHERE correlation_id = ? AND stage = ? ORDER BY sequence DESC LIMIT 1`,
		correlationID, stage)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	return entry, err
}

func (s *SQLiteAuditStore) VerifyChain(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, selectEntries+` ORDER BY sequence ASC`)
	if err != nil {
		return fmt.Errorf("audit: query chain: %w", err)
	}
	defer func() { _ = rows.Close() }()
	entries, err := scanEntries(rows)
	if err != nil {
		return err
	}
	return verifyEntries(entries)
}

// Close closes the underlying database.
func (s *SQLiteAuditStore) Close() error {
	return s.db.Close()
}

const selectEntries = `SELECT entry_id, sequence, timestamp, correlation_id, stage, payload, payload_hash, previous_hash, entry_hash FROM audit_entries`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*AuditEntry, error) {
	var e AuditEntry
	var ts, payload string
	if err := row.Scan(&e.EntryID, &e.Sequence, &ts, &e.CorrelationID,
		&e.Stage, &payload, &e.PayloadHash, &e.PreviousHash, &e.EntryHash); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("audit: bad timestamp %q: %w", ts, err)
	}
	e.Timestamp = parsed
	e.Payload = json.RawMessage(payload)
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]*AuditEntry, error) {
	var entries []*AuditEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate entries: %w", err)
	}
	return entries, nil
}
