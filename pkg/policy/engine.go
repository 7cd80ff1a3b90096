package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/odyssey-one/sovereign-core/pkg/contracts"
)

// Engine is the policy decision point. It resolves the actor's role, checks
// the authorization matrix, and evaluates the business-rule table. The two
// checks are independent and both always run so a denied command reports
// every reason at once.
type Engine struct {
	matrix *Matrix
	rules  *RuleSet
	roles  RoleStore
	logger *slog.Logger
}

// NewEngine wires a policy engine. All three collaborators are required.
func NewEngine(matrix *Matrix, rules *RuleSet, roles RoleStore, logger *slog.Logger) (*Engine, error) {
	if matrix == nil {
		return nil, errors.New("policy: nil matrix")
	}
	if rules == nil {
		return nil, errors.New("policy: nil rule set")
	}
	if roles == nil {
		return nil, errors.New("policy: nil role store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{matrix: matrix, rules: rules, roles: roles, logger: logger}, nil
}

// Authorize evaluates the command against the role matrix and the
// business-rule table. The result is approved only when both checks pass;
// warn-severity rule failures are carried as warnings and do not block.
//
// Role resolution failures deny. An actor without a role assignment, or a
// store that cannot answer, produces a permission violation rather than a
// pass-through.
func (e *Engine) Authorize(ctx context.Context, cmd *contracts.Command) contracts.ValidationResult {
	var violations []contracts.Violation

	role, err := e.roles.GetRole(ctx, cmd.ActorID, cmd.OrganizationID)
	switch {
	case errors.Is(err, ErrRoleNotFound):
		violations = append(violations, contracts.Violation{
			Code: contracts.CodePermissionDenied,
			Message: fmt.Sprintf("actor %q has no role in organization %q",
				cmd.ActorID, cmd.OrganizationID),
		})
	case err != nil:
		e.logger.ErrorContext(ctx, "role lookup failed, denying",
			slog.String("actor_id", cmd.ActorID),
			slog.String("organization_id", cmd.OrganizationID),
			slog.String("error", err.Error()))
		violations = append(violations, contracts.Violation{
			Code:    contracts.CodePermissionDenied,
			Message: "role lookup unavailable, command denied",
		})
	case !e.matrix.Known(role):
		violations = append(violations, contracts.Violation{
			Code:    contracts.CodePermissionDenied,
			Message: fmt.Sprintf("role %q is not recognized by the authorization matrix", role),
		})
	case !e.matrix.Allows(role, cmd.Action):
		violations = append(violations, contracts.Violation{
			Code:    contracts.CodePermissionDenied,
			Message: fmt.Sprintf("role %q not authorized for action %q", role, cmd.Action),
		})
	}

	ruleViolations, warnings := e.rules.Evaluate(cmd)
	violations = append(violations, ruleViolations...)

	res := contracts.ValidationResult{
		Approved:   len(violations) == 0,
		Command:    cmd,
		Violations: violations,
		Warnings:   warnings,
	}
	if !res.Approved {
		e.logger.InfoContext(ctx, "policy denied command",
			slog.String("action", string(cmd.Action)),
			slog.String("target", string(cmd.Target)),
			slog.String("correlation_id", cmd.CorrelationID),
			slog.Int("violations", len(violations)))
	}
	return res
}
