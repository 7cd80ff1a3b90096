// Package contracts defines the shared data model of the command pipeline:
// the canonical Command, the consensus candidate provenance record, the
// validation verdict, and the execution/rollback plan pair.
//
// Everything in this package is plain data. Each stage of the pipeline
// consumes and produces these types; no stage reaches around them.
package contracts

import (
	"fmt"
	"time"
)

// Action is one of the fixed set of verbs a command may carry.
type Action string

const (
	ActionCreate   Action = "CREATE"
	ActionRead     Action = "READ"
	ActionUpdate   Action = "UPDATE"
	ActionDelete   Action = "DELETE"
	ActionAnalyze  Action = "ANALYZE"
	ActionOptimize Action = "OPTIMIZE"
	ActionPredict  Action = "PREDICT"
	ActionValidate Action = "VALIDATE"
)

// Actions returns every legal action in declaration order.
func Actions() []Action {
	return []Action{
		ActionCreate, ActionRead, ActionUpdate, ActionDelete,
		ActionAnalyze, ActionOptimize, ActionPredict, ActionValidate,
	}
}

// ParseAction converts a raw string into an Action.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Target names a resource kind a command operates on.
type Target string

const (
	TargetUserProfile     Target = "USER_PROFILE"
	TargetProjectTask     Target = "PROJECT_TASK"
	TargetBidProposal     Target = "BID_PROPOSAL"
	TargetDocument        Target = "DOCUMENT"
	TargetEmployee        Target = "EMPLOYEE"
	TargetTimeEntry       Target = "TIME_ENTRY"
	TargetAnalyticsReport Target = "ANALYTICS_REPORT"
	TargetAIAgent         Target = "AI_AGENT"
	TargetSystemConfig    Target = "SYSTEM_CONFIG"
)

// Targets returns every legal target in declaration order.
func Targets() []Target {
	return []Target{
		TargetUserProfile, TargetProjectTask, TargetBidProposal,
		TargetDocument, TargetEmployee, TargetTimeEntry,
		TargetAnalyticsReport, TargetAIAgent, TargetSystemConfig,
	}
}

// ParseTarget converts a raw string into a Target.
func ParseTarget(s string) (Target, error) {
	for _, t := range Targets() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown target %q", s)
}

// Command is the canonical unit of work. A Command is immutable once
// synthesized; a correction is a new Command with a new correlation id.
type Command struct {
	Action         Action         `json:"action"`
	Target         Target         `json:"target"`
	Payload        map[string]any `json:"payload"`
	ActorID        string         `json:"actor_id"`
	OrganizationID string         `json:"organization_id"`
	IssuedAt       time.Time      `json:"issued_at"`
	CorrelationID  string         `json:"correlation_id"`
}

// CandidateStatus records how a single generator dispatch ended.
type CandidateStatus string

const (
	CandidateSucceeded CandidateStatus = "succeeded"
	CandidateTimedOut  CandidateStatus = "timed_out"
	CandidateErrored   CandidateStatus = "errored"
)

// ConsensusCandidate is one generator's raw output plus provenance. Candidates
// are discarded after selection; only the audit trail retains them.
type ConsensusCandidate struct {
	GeneratorID string          `json:"generator_id"`
	RawText     string          `json:"raw_text,omitempty"`
	Status      CandidateStatus `json:"status"`
	Latency     time.Duration   `json:"latency"`
	Error       string          `json:"error,omitempty"`
}
