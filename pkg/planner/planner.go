// Package planner turns an approved command into an ordered execution plan
// and its compensating rollback plan. The two plans are built in the same
// call: no execution plan leaves this package without a rollback pair.
package planner

import (
	"fmt"
	"time"

	"github.com/odyssey-one/sovereign-core/pkg/contracts"
)

// resourceFor maps each command target to the storage resource its plan
// steps operate on. The table is closed: a target without an entry is a
// planning failure, never a fall-through to some default resource.
var resourceFor = map[contracts.Target]string{
	contracts.TargetUserProfile:     "users",
	contracts.TargetProjectTask:     "tasks",
	contracts.TargetBidProposal:     "bids",
	contracts.TargetDocument:        "documents",
	contracts.TargetEmployee:        "employees",
	contracts.TargetTimeEntry:       "time_entries",
	contracts.TargetAnalyticsReport: "analytics_reports",
	contracts.TargetAIAgent:         "agents",
	contracts.TargetSystemConfig:    "system_config",
}

// Step durations are coarse planning estimates, not SLOs.
const (
	durationWrite   = 2 * time.Second
	durationRead    = 500 * time.Millisecond
	durationCompute = 5 * time.Second
)

// Planner builds execution and rollback plans for approved commands.
type Planner struct{}

// New returns a Planner.
func New() *Planner { return &Planner{} }

// Plan builds the execution plan and its paired rollback plan for the
// command. The command must already be approved; Plan does not re-check
// policy. A target with no resource mapping returns an error wrapping
// contracts.ErrUnknownTarget.
func (p *Planner) Plan(cmd *contracts.Command) (*contracts.ExecutionPlan, *contracts.RollbackPlan, error) {
	resource, ok := resourceFor[cmd.Target]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", contracts.ErrUnknownTarget, cmd.Target)
	}

	var steps, undo []contracts.PlanStep
	switch cmd.Action {
	case contracts.ActionCreate:
		steps = []contracts.PlanStep{
			{Resource: resource, Operation: "insert", Payload: cmd.Payload},
		}
		undo = []contracts.PlanStep{
			{Resource: resource, Operation: "delete_created", Payload: map[string]any{
				"correlation_id": cmd.CorrelationID,
			}},
		}
	case contracts.ActionUpdate:
		steps = []contracts.PlanStep{
			{Resource: resource, Operation: "snapshot", Payload: selector(cmd)},
			{Resource: resource, Operation: "update", Payload: cmd.Payload},
		}
		undo = []contracts.PlanStep{
			{Resource: resource, Operation: "restore_snapshot", Payload: map[string]any{
				"correlation_id": cmd.CorrelationID,
			}},
		}
	case contracts.ActionDelete:
		steps = []contracts.PlanStep{
			{Resource: resource, Operation: "snapshot", Payload: selector(cmd)},
			{Resource: resource, Operation: "delete", Payload: cmd.Payload},
		}
		undo = []contracts.PlanStep{
			{Resource: resource, Operation: "restore_snapshot", Payload: map[string]any{
				"correlation_id": cmd.CorrelationID,
			}},
		}
	case contracts.ActionRead:
		steps = []contracts.PlanStep{
			{Resource: resource, Operation: "select", Payload: cmd.Payload},
		}
		undo = readRollback(resource, cmd)
	case contracts.ActionAnalyze, contracts.ActionOptimize, contracts.ActionPredict:
		steps = []contracts.PlanStep{
			{Resource: resource, Operation: "select", Payload: cmd.Payload},
			{Resource: resource, Operation: "compute_" + lowerAction(cmd.Action), Payload: cmd.Payload},
		}
		undo = readRollback(resource, cmd)
	case contracts.ActionValidate:
		steps = []contracts.PlanStep{
			{Resource: resource, Operation: "select", Payload: cmd.Payload},
			{Resource: resource, Operation: "check_constraints", Payload: cmd.Payload},
		}
		undo = readRollback(resource, cmd)
	default:
		return nil, nil, fmt.Errorf("planner: no step template for action %q", cmd.Action)
	}

	exec := &contracts.ExecutionPlan{
		CorrelationID:     cmd.CorrelationID,
		Steps:             steps,
		EstimatedDuration: estimate(steps),
	}
	rollback := &contracts.RollbackPlan{
		CorrelationID:     cmd.CorrelationID,
		Steps:             undo,
		EstimatedDuration: estimate(undo),
	}
	return exec, rollback, nil
}

// readRollback is the rollback for non-mutating actions. There is nothing to
// undo, but the rollback plan is still non-empty: the executor runs a
// verification step confirming the read left no writes behind.
func readRollback(resource string, cmd *contracts.Command) []contracts.PlanStep {
	return []contracts.PlanStep{
		{Resource: resource, Operation: "confirm_no_mutation", Payload: map[string]any{
			"correlation_id": cmd.CorrelationID,
		}},
	}
}

// selector narrows a snapshot step to the rows the mutation touches, using
// the identifying fields present in the payload.
func selector(cmd *contracts.Command) map[string]any {
	sel := make(map[string]any)
	for _, key := range []string{"id", "taskId", "taskName", "userId", "employeeId", "documentId", "bidId", "agentId", "key"} {
		if v, ok := cmd.Payload[key]; ok {
			sel[key] = v
		}
	}
	if len(sel) == 0 {
		// No identifying field: snapshot by correlation so restore still works.
		sel["correlation_id"] = cmd.CorrelationID
	}
	return sel
}

func estimate(steps []contracts.PlanStep) time.Duration {
	var total time.Duration
	for _, s := range steps {
		switch s.Operation {
		case "select", "snapshot", "confirm_no_mutation":
			total += durationRead
		case "compute_analyze", "compute_optimize", "compute_predict", "check_constraints":
			total += durationCompute
		default:
			total += durationWrite
		}
	}
	return total
}

func lowerAction(a contracts.Action) string {
	switch a {
	case contracts.ActionAnalyze:
		return "analyze"
	case contracts.ActionOptimize:
		return "optimize"
	case contracts.ActionPredict:
		return "predict"
	}
	return "unknown"
}
