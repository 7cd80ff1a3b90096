package contracts

import "errors"

// Deterministic violation codes. Every terminal pipeline failure carries one
// of these so audit entries and caller-facing results stay machine-readable.
const (
	CodeSchemaViolation       = "ERR_SCHEMA_VIOLATION"
	CodePermissionDenied      = "ERR_PERMISSION_DENIED"
	CodeBusinessRuleViolation = "ERR_BUSINESS_RULE_VIOLATION"
	CodeGenerationFailure     = "ERR_GENERATION_FAILURE"
	CodePlanningFailure       = "ERR_PLANNING_FAILURE"
)

var (
	// ErrRegistryUnavailable is fatal at startup: without a schema registry
	// snapshot the process must refuse to serve (fail-closed).
	ErrRegistryUnavailable = errors.New("schema registry snapshot unavailable")

	// ErrNoConsensus means zero generator candidates parsed; the orchestrator
	// treats it as a hard failure rather than picking a broken candidate.
	ErrNoConsensus = errors.New("no consensus: zero parseable candidates")

	// ErrUnknownTarget means the planner has no resource mapping for the
	// command's target; it must never fall through to a default resource.
	ErrUnknownTarget = errors.New("no storage resource mapped for target")
)
