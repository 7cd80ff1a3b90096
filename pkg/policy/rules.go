package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/odyssey-one/sovereign-core/pkg/contracts"
)

// Severity controls whether a failed predicate blocks the command or only
// annotates the result.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Rule is one business-rule predicate. The expression is CEL over the
// variables `action`, `target` (strings) and `payload` (map). It must
// evaluate to true for the command to pass.
type Rule struct {
	ID         string
	Action     contracts.Action
	Target     contracts.Target
	Expression string
	Severity   Severity
	Message    string
}

type compiledRule struct {
	Rule
	program cel.Program
}

// RuleSet holds compiled business rules, indexed by (action, target). All
// expressions are compiled at construction so a malformed rule is a startup
// failure, never a per-request surprise.
type RuleSet struct {
	env   *cel.Env
	rules map[ruleKey][]compiledRule
}

type ruleKey struct {
	action contracts.Action
	target contracts.Target
}

// NewRuleSet compiles the given rules. Rules for the same (action, target)
// pair keep their given order.
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("target", cel.StringType),
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: cel environment: %w", err)
	}

	rs := &RuleSet{env: env, rules: make(map[ruleKey][]compiledRule)}
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("policy: rule with empty id (expression %q)", r.Expression)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("policy: duplicate rule id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
		if _, err := contracts.ParseAction(string(r.Action)); err != nil {
			return nil, fmt.Errorf("policy: rule %s: %w", r.ID, err)
		}
		if _, err := contracts.ParseTarget(string(r.Target)); err != nil {
			return nil, fmt.Errorf("policy: rule %s: %w", r.ID, err)
		}
		if r.Severity != SeverityError && r.Severity != SeverityWarn {
			return nil, fmt.Errorf("policy: rule %s: unknown severity %q", r.ID, r.Severity)
		}

		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("policy: rule %s does not compile: %w", r.ID, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("policy: rule %s must evaluate to bool, got %s", r.ID, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("policy: rule %s: %w", r.ID, err)
		}

		key := ruleKey{action: r.Action, target: r.Target}
		rs.rules[key] = append(rs.rules[key], compiledRule{Rule: r, program: prg})
	}
	return rs, nil
}

// Evaluate runs every rule registered for the command's (action, target)
// pair. Failed error-severity rules come back as violations; failed
// warn-severity rules come back as warnings. A predicate that errors at
// runtime (for example a type mismatch in the payload) is treated as a
// failed rule: evaluation problems deny, they never wave a command through.
func (rs *RuleSet) Evaluate(cmd *contracts.Command) (violations []contracts.Violation, warnings []string) {
	matched := rs.rules[ruleKey{action: cmd.Action, target: cmd.Target}]
	for _, r := range matched {
		payload := cmd.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		out, _, err := r.program.Eval(map[string]any{
			"action":  string(cmd.Action),
			"target":  string(cmd.Target),
			"payload": payload,
		})
		passed := false
		if err == nil {
			b, ok := out.Value().(bool)
			passed = ok && b
		}
		if passed {
			continue
		}
		if r.Severity == SeverityWarn {
			warnings = append(warnings, fmt.Sprintf("%s: %s", r.ID, r.Message))
			continue
		}
		violations = append(violations, contracts.Violation{
			Code:    contracts.CodeBusinessRuleViolation,
			Message: fmt.Sprintf("%s: %s", r.ID, r.Message),
		})
	}
	return violations, warnings
}

// Len returns the number of compiled rules.
func (rs *RuleSet) Len() int {
	n := 0
	for _, list := range rs.rules {
		n += len(list)
	}
	return n
}

// DefaultRules returns the deployment-default business-rule table.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:         "task-name-on-delete",
			Action:     contracts.ActionDelete,
			Target:     contracts.TargetProjectTask,
			Expression: `has(payload.taskName) && payload.taskName != ""`,
			Severity:   SeverityError,
			Message:    "task name required for deletion",
		},
		{
			ID:         "profile-email-format",
			Action:     contracts.ActionCreate,
			Target:     contracts.TargetUserProfile,
			Expression: `has(payload.email) && payload.email.matches("^[^@\\s]+@[^@\\s]+\\.[^@\\s]+$")`,
			Severity:   SeverityError,
			Message:    "user profile requires a well-formed email address",
		},
		{
			ID:         "profile-name-present",
			Action:     contracts.ActionCreate,
			Target:     contracts.TargetUserProfile,
			Expression: `has(payload.name) && payload.name != ""`,
			Severity:   SeverityError,
			Message:    "user profile requires a non-empty name",
		},
		{
			ID:         "profile-id-on-delete",
			Action:     contracts.ActionDelete,
			Target:     contracts.TargetUserProfile,
			Expression: `has(payload.userId) && payload.userId != ""`,
			Severity:   SeverityError,
			Message:    "user id required for profile deletion",
		},
		{
			ID:         "employee-id-on-delete",
			Action:     contracts.ActionDelete,
			Target:     contracts.TargetEmployee,
			Expression: `has(payload.employeeId) && payload.employeeId != ""`,
			Severity:   SeverityError,
			Message:    "employee id required for deletion",
		},
		{
			ID:         "employee-email-on-file",
			Action:     contracts.ActionCreate,
			Target:     contracts.TargetEmployee,
			Expression: `has(payload.email)`,
			Severity:   SeverityWarn,
			Message:    "employee record created without an email on file",
		},
		{
			ID:         "time-entry-positive-hours",
			Action:     contracts.ActionCreate,
			Target:     contracts.TargetTimeEntry,
			Expression: `has(payload.hours) && double(payload.hours) > 0.0`,
			Severity:   SeverityError,
			Message:    "time entry hours must be positive",
		},
		{
			ID:         "config-key-on-update",
			Action:     contracts.ActionUpdate,
			Target:     contracts.TargetSystemConfig,
			Expression: `has(payload.key) && payload.key != ""`,
			Severity:   SeverityError,
			Message:    "configuration key required for update",
		},
		{
			ID:         "document-id-on-delete",
			Action:     contracts.ActionDelete,
			Target:     contracts.TargetDocument,
			Expression: `has(payload.documentId) && payload.documentId != ""`,
			Severity:   SeverityError,
			Message:    "document id required for deletion",
		},
		{
			ID:         "bid-amount-positive",
			Action:     contracts.ActionCreate,
			Target:     contracts.TargetBidProposal,
			Expression: `!has(payload.amount) || double(payload.amount) > 0.0`,
			Severity:   SeverityError,
			Message:    "bid amount, when provided, must be positive",
		},
	}
}
