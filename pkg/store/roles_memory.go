package store

import (
	"context"
	"sync"

	"github.com/odyssey-one/sovereign-core/pkg/policy"
)

// MemoryRoleStore is an in-process role assignment table, keyed by
// (organization, actor).
type MemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[roleKey]policy.Role
}

type roleKey struct {
	organizationID string
	actorID        string
}

// NewMemoryRoleStore returns an empty role store.
func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: make(map[roleKey]policy.Role)}
}

// Assign records the actor's role in the organization, replacing any
// previous assignment.
func (s *MemoryRoleStore) Assign(actorID, organizationID string, role policy.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[roleKey{organizationID: organizationID, actorID: actorID}] = role
}

func (s *MemoryRoleStore) GetRole(ctx context.Context, actorID, organizationID string) (policy.Role, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[roleKey{organizationID: organizationID, actorID: actorID}]
	if !ok {
		return "", policy.ErrRoleNotFound
	}
	return role, nil
}
