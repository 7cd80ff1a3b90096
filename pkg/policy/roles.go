// Package policy is the pipeline's policy decision point. A structurally
// valid command passes two independent checks: the role-action authorization
// matrix and the business-rule predicate table. Both checks always run, even
// when the first fails, so a caller sees every violation in one response.
//
// Evaluation is fail-closed: an unknown role, a missing matrix entry, or a
// predicate that cannot be evaluated all deny.
package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-one/sovereign-core/pkg/contracts"
)

// Role is an actor's role within an organization.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// Roles returns every enumerated role.
func Roles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleManager, RoleStaff}
}

// ErrRoleNotFound is returned by a RoleStore when the actor has no role in
// the organization.
var ErrRoleNotFound = errors.New("actor has no role in organization")

// RoleStore reads actor-role assignments from the persistent store. The
// policy engine never writes through this interface.
type RoleStore interface {
	GetRole(ctx context.Context, actorID, organizationID string) (Role, error)
}

// Matrix maps each role to the set of actions it may perform. A Matrix is
// immutable after construction and safely shared across requests.
type Matrix struct {
	permitted map[Role]map[contracts.Action]struct{}
}

// NewMatrix builds a Matrix from explicit grants. Every enumerated role must
// have an entry, and every granted action must be in the action vocabulary;
// a role silently absent from the matrix would otherwise deny everything
// without ever saying why.
func NewMatrix(grants map[Role][]contracts.Action) (*Matrix, error) {
	m := &Matrix{permitted: make(map[Role]map[contracts.Action]struct{}, len(grants))}
	for role, actions := range grants {
		if !knownRole(role) {
			return nil, fmt.Errorf("policy: matrix grants unknown role %q", role)
		}
		set := make(map[contracts.Action]struct{}, len(actions))
		for _, a := range actions {
			if _, err := contracts.ParseAction(string(a)); err != nil {
				return nil, fmt.Errorf("policy: matrix for role %q: %w", role, err)
			}
			set[a] = struct{}{}
		}
		m.permitted[role] = set
	}
	for _, role := range Roles() {
		if _, ok := m.permitted[role]; !ok {
			return nil, fmt.Errorf("policy: matrix is missing an entry for role %q", role)
		}
	}
	return m, nil
}

// Allows reports whether the role may perform the action. Unknown roles are
// always denied.
func (m *Matrix) Allows(role Role, action contracts.Action) bool {
	set, ok := m.permitted[role]
	if !ok {
		return false
	}
	_, ok = set[action]
	return ok
}

// Known reports whether the role has a matrix entry.
func (m *Matrix) Known(role Role) bool {
	_, ok := m.permitted[role]
	return ok
}

// DefaultMatrix returns the deployment-default authorization matrix.
func DefaultMatrix() *Matrix {
	m, err := NewMatrix(map[Role][]contracts.Action{
		RoleOwner: contracts.Actions(),
		RoleAdmin: {
			contracts.ActionCreate, contracts.ActionRead, contracts.ActionUpdate,
			contracts.ActionDelete, contracts.ActionAnalyze, contracts.ActionOptimize,
			contracts.ActionValidate,
		},
		RoleManager: {
			contracts.ActionCreate, contracts.ActionRead, contracts.ActionUpdate,
			contracts.ActionAnalyze, contracts.ActionValidate,
		},
		RoleStaff: {
			contracts.ActionRead, contracts.ActionUpdate, contracts.ActionAnalyze,
		},
	})
	if err != nil {
		// The default grants are static; a defect here is a programming
		// error caught by the package tests, not a runtime condition.
		panic(err)
	}
	return m
}

func knownRole(r Role) bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}
