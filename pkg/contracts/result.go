package contracts

import "time"

// Violation is a single failed check with a machine-readable code and a
// human-readable message. Stages collect every violation they find rather
// than stopping at the first, so callers can fix everything in one round trip.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (v Violation) String() string { return v.Code + ": " + v.Message }

// ValidationResult is the verdict produced for one Command. It is created
// once, persisted for audit, and never mutated afterwards.
type ValidationResult struct {
	Approved   bool        `json:"approved"`
	Command    *Command    `json:"command,omitempty"`
	Violations []Violation `json:"violations,omitempty"`
	Warnings   []string    `json:"warnings,omitempty"`
}

// Messages flattens the violations into display strings.
func (r ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.String())
	}
	return out
}

// PlanStep is one ordered operation against a storage resource.
type PlanStep struct {
	Resource  string         `json:"resource"`
	Operation string         `json:"operation"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ExecutionPlan is the ordered step list handed to a downstream executor.
// An ExecutionPlan is never handed out without its paired RollbackPlan.
type ExecutionPlan struct {
	CorrelationID     string        `json:"correlation_id"`
	Steps             []PlanStep    `json:"steps"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// RollbackPlan is the compensating step list generated in the same call as
// its ExecutionPlan, before any execution step may run.
type RollbackPlan struct {
	CorrelationID     string        `json:"correlation_id"`
	Steps             []PlanStep    `json:"steps"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
}
