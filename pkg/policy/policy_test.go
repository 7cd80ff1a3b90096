package policy

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-one/sovereign-core/pkg/contracts"
	"github.com/odyssey-one/sovereign-core/pkg/schema"
)

type stubRoleStore struct {
	role Role
	err  error
}

func (s stubRoleStore) GetRole(ctx context.Context, actorID, organizationID string) (Role, error) {
	return s.role, s.err
}

func newTestEngine(t *testing.T, store RoleStore) *Engine {
	t.Helper()
	rules, err := NewRuleSet(DefaultRules())
	require.NoError(t, err)
	eng, err := NewEngine(DefaultMatrix(), rules, store, slog.Default())
	require.NoError(t, err)
	return eng
}

func command(action contracts.Action, target contracts.Target, payload map[string]any) *contracts.Command {
	return &contracts.Command{
		Action:         action,
		Target:         target,
		Payload:        payload,
		ActorID:        "usr-1",
		OrganizationID: "org-1",
		CorrelationID:  "corr-1",
	}
}

func TestDefaultMatrixCoversEveryRole(t *testing.T) {
	m := DefaultMatrix()
	for _, role := range Roles() {
		assert.True(t, m.Known(role), "role %q missing from default matrix", role)
	}
}

func TestDefaultMatrixGrants(t *testing.T) {
	m := DefaultMatrix()

	for _, action := range contracts.Actions() {
		assert.True(t, m.Allows(RoleOwner, action), "owner should be allowed %s", action)
	}
	assert.False(t, m.Allows(RoleAdmin, contracts.ActionPredict))
	assert.True(t, m.Allows(RoleAdmin, contracts.ActionDelete))
	assert.False(t, m.Allows(RoleManager, contracts.ActionDelete))
	assert.True(t, m.Allows(RoleStaff, contracts.ActionRead))
	assert.False(t, m.Allows(RoleStaff, contracts.ActionDelete))
	assert.False(t, m.Allows(Role("intern"), contracts.ActionRead))
}

func TestNewMatrixRejectsIncompleteGrants(t *testing.T) {
	_, err := NewMatrix(map[Role][]contracts.Action{
		RoleOwner: contracts.Actions(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing an entry")
}

func TestNewMatrixRejectsUnknownRole(t *testing.T) {
	grants := map[Role][]contracts.Action{
		RoleOwner:      contracts.Actions(),
		RoleAdmin:      contracts.Actions(),
		RoleManager:    contracts.Actions(),
		RoleStaff:      contracts.Actions(),
		Role("intern"): {contracts.ActionRead},
	}
	_, err := NewMatrix(grants)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestNewRuleSetRejectsBadExpression(t *testing.T) {
	_, err := NewRuleSet([]Rule{{
		ID:         "broken",
		Action:     contracts.ActionCreate,
		Target:     contracts.TargetProjectTask,
		Expression: `payload.name ==`,
		Severity:   SeverityError,
		Message:    "broken",
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not compile")
}

func TestNewRuleSetRejectsNonBoolExpression(t *testing.T) {
	_, err := NewRuleSet([]Rule{{
		ID:         "not-a-predicate",
		Action:     contracts.ActionCreate,
		Target:     contracts.TargetProjectTask,
		Expression: `"hello"`,
		Severity:   SeverityError,
		Message:    "nope",
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must evaluate to bool")
}

func TestNewRuleSetRejectsDuplicateIDs(t *testing.T) {
	rule := Rule{
		ID:         "dup",
		Action:     contracts.ActionCreate,
		Target:     contracts.TargetProjectTask,
		Expression: `true`,
		Severity:   SeverityError,
		Message:    "x",
	}
	_, err := NewRuleSet([]Rule{rule, rule})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate rule id")
}

func TestAuthorizeEmptyTaskNameOnDelete(t *testing.T) {
	eng := newTestEngine(t, stubRoleStore{role: RoleOwner})

	res := eng.Authorize(context.Background(), command(
		contracts.ActionDelete, contracts.TargetProjectTask,
		map[string]any{"taskName": ""},
	))

	require.False(t, res.Approved)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, contracts.CodeBusinessRuleViolation, res.Violations[0].Code)
	assert.Contains(t, res.Violations[0].Message, "task name required for deletion")
}

func TestAuthorizeStaffDeleteDenied(t *testing.T) {
	eng := newTestEngine(t, stubRoleStore{role: RoleStaff})

	res := eng.Authorize(context.Background(), command(
		contracts.ActionDelete, contracts.TargetProjectTask,
		map[string]any{"taskName": "cleanup"},
	))

	require.False(t, res.Approved)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, contracts.CodePermissionDenied, res.Violations[0].Code)
	assert.Contains(t, res.Violations[0].Message, `role "staff" not authorized for action "DELETE"`)
}

func TestAuthorizeReportsBothChecks(t *testing.T) {
	eng := newTestEngine(t, stubRoleStore{role: RoleStaff})

	res := eng.Authorize(context.Background(), command(
		contracts.ActionDelete, contracts.TargetProjectTask,
		map[string]any{"taskName": ""},
	))

	require.False(t, res.Approved)
	require.Len(t, res.Violations, 2, "matrix and rule violations should both be reported")
	codes := []string{res.Violations[0].Code, res.Violations[1].Code}
	assert.Contains(t, codes, contracts.CodePermissionDenied)
	assert.Contains(t, codes, contracts.CodeBusinessRuleViolation)
}

func TestAuthorizeApprovedWithWarnings(t *testing.T) {
	eng := newTestEngine(t, stubRoleStore{role: RoleAdmin})

	res := eng.Authorize(context.Background(), command(
		contracts.ActionCreate, contracts.TargetEmployee,
		map[string]any{"name": "Jo Field", "position": "surveyor"},
	))

	require.True(t, res.Approved)
	assert.Empty(t, res.Violations)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "without an email")
}

func TestAuthorizeRoleNotFound(t *testing.T) {
	eng := newTestEngine(t, stubRoleStore{err: ErrRoleNotFound})

	res := eng.Authorize(context.Background(), command(
		contracts.ActionRead, contracts.TargetDocument, nil,
	))

	require.False(t, res.Approved)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, contracts.CodePermissionDenied, res.Violations[0].Code)
	assert.Contains(t, res.Violations[0].Message, "no role in organization")
}

func TestAuthorizeRoleStoreFailureDenies(t *testing.T) {
	eng := newTestEngine(t, stubRoleStore{err: errors.New("connection refused")})

	res := eng.Authorize(context.Background(), command(
		contracts.ActionRead, contracts.TargetDocument, nil,
	))

	require.False(t, res.Approved)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, contracts.CodePermissionDenied, res.Violations[0].Code)
	assert.Contains(t, res.Violations[0].Message, "denied")
}

func TestAuthorizeRuntimeTypeMismatchDenies(t *testing.T) {
	eng := newTestEngine(t, stubRoleStore{role: RoleOwner})

	// hours as a non-numeric value must fail the predicate, not pass it.
	res := eng.Authorize(context.Background(), command(
		contracts.ActionCreate, contracts.TargetTimeEntry,
		map[string]any{"hours": "eight", "taskId": "t-1"},
	))

	require.False(t, res.Approved)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, contracts.CodeBusinessRuleViolation, res.Violations[0].Code)
}

// Every worked example in the built-in book must clear the default rule
// table: a rule no catalog-compliant payload can satisfy is a dead catalog
// entry, and this is where that drift surfaces.
func TestDefaultRulesAcceptBookExamples(t *testing.T) {
	snap, err := schema.Default()
	require.NoError(t, err)
	rules, err := NewRuleSet(DefaultRules())
	require.NoError(t, err)

	for _, entry := range snap.Entries() {
		for i, ex := range entry.Examples {
			cmd := ex
			violations, _ := rules.Evaluate(&cmd)
			assert.Empty(t, violations,
				"%s %s example %d failed the default rules", entry.Action, entry.Target, i)
		}
	}
}

func TestAuthorizeBidAmountOptional(t *testing.T) {
	eng := newTestEngine(t, stubRoleStore{role: RoleOwner})

	// The book does not require an amount on a draft bid; its absence must
	// not deny the command.
	res := eng.Authorize(context.Background(), command(
		contracts.ActionCreate, contracts.TargetBidProposal,
		map[string]any{"opportunityId": "opp-1", "title": "Runway resurfacing"},
	))
	require.True(t, res.Approved, "violations: %v", res.Violations)

	bad := eng.Authorize(context.Background(), command(
		contracts.ActionCreate, contracts.TargetBidProposal,
		map[string]any{"opportunityId": "opp-1", "amount": -50},
	))
	require.False(t, bad.Approved)
	require.Len(t, bad.Violations, 1)
	assert.Contains(t, bad.Violations[0].Message, "bid-amount-positive")
}

func TestAuthorizeEmailFormat(t *testing.T) {
	eng := newTestEngine(t, stubRoleStore{role: RoleOwner})

	bad := eng.Authorize(context.Background(), command(
		contracts.ActionCreate, contracts.TargetUserProfile,
		map[string]any{"email": "not-an-address", "name": "Pat"},
	))
	require.False(t, bad.Approved)

	good := eng.Authorize(context.Background(), command(
		contracts.ActionCreate, contracts.TargetUserProfile,
		map[string]any{"email": "pat@example.com", "name": "Pat"},
	))
	assert.True(t, good.Approved, "violations: %v", good.Violations)
}
