package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/odyssey-one/sovereign-core/pkg/policy"
)

// PostgresRoleStore reads actor-role assignments from the
// user_organizations table.
type PostgresRoleStore struct {
	db *sql.DB
}

// NewPostgresRoleStore wraps an open connection pool. The caller owns the
// pool's lifecycle.
func NewPostgresRoleStore(db *sql.DB) *PostgresRoleStore {
	return &PostgresRoleStore{db: db}
}

// OpenPostgresRoleStore opens a pool from a lib/pq DSN and pings it.
func OpenPostgresRoleStore(ctx context.Context, dsn string) (*PostgresRoleStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("roles: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("roles: ping postgres: %w", err)
	}
	return &PostgresRoleStore{db: db}, nil
}

func (s *PostgresRoleStore) GetRole(ctx context.Context, actorID, organizationID string) (policy.Role, error) {
	const query = `SELECT role FROM user_organizations WHERE user_id = $1 AND organization_id = $2`
	var role string
	err := s.db.QueryRowContext(ctx, query, actorID, organizationID).Scan(&role)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", policy.ErrRoleNotFound
	case err != nil:
		return "", fmt.Errorf("roles: lookup %s in %s: %w", actorID, organizationID, err)
	}
	return policy.Role(role), nil
}

// Close closes the underlying pool.
func (s *PostgresRoleStore) Close() error {
	return s.db.Close()
}
