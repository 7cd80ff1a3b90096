// Package pipeline wires the full request lifecycle: intent in, audited
// verdict out. Every stage transition is recorded in the audit trail before
// the next stage runs, and a resubmitted correlation id replays the recorded
// verdict instead of dispatching generators again.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-one/sovereign-core/pkg/canonicalize"
	"github.com/odyssey-one/sovereign-core/pkg/consensus"
	"github.com/odyssey-one/sovereign-core/pkg/contracts"
	"github.com/odyssey-one/sovereign-core/pkg/planner"
	"github.com/odyssey-one/sovereign-core/pkg/policy"
	"github.com/odyssey-one/sovereign-core/pkg/prompt"
	"github.com/odyssey-one/sovereign-core/pkg/schema"
	"github.com/odyssey-one/sovereign-core/pkg/store"
	"github.com/odyssey-one/sovereign-core/pkg/validator"
)

// ErrInvalidRequest marks a request the pipeline rejected before any stage
// ran: the caller's input was unusable. Everything else Submit returns as an
// error is an internal failure.
var ErrInvalidRequest = errors.New("pipeline: invalid request")

// Lifecycle stages, in order. Each one is written to the audit trail before
// the stage after it may run.
const (
	StageReceived        = "received"
	StageSynthesized     = "synthesized"
	StageGenerated       = "generated"
	StageSchemaValidated = "schema_validated"
	StagePolicyValidated = "policy_validated"
	StagePlanned         = "planned"
	StageReturned        = "returned"
)

// Request is one natural-language intent submitted on behalf of an actor.
// CorrelationID is optional: leave it empty for a fresh request, or resubmit
// a previous id to replay that request's recorded verdict.
type Request struct {
	Intent         string `json:"intent"`
	ActorID        string `json:"actor_id"`
	OrganizationID string `json:"organization_id"`
	CorrelationID  string `json:"correlation_id,omitempty"`
}

// Result is the pipeline's verdict for one request. Approved results carry
// both plans; denied results carry every violation found. Replayed marks a
// verdict served from the audit trail without re-running the generators.
type Result struct {
	CorrelationID string                   `json:"correlation_id"`
	Approved      bool                     `json:"approved"`
	Replayed      bool                     `json:"replayed,omitempty"`
	Command       *contracts.Command       `json:"command,omitempty"`
	Violations    []contracts.Violation    `json:"violations,omitempty"`
	Warnings      []string                 `json:"warnings,omitempty"`
	ExecutionPlan *contracts.ExecutionPlan `json:"execution_plan,omitempty"`
	RollbackPlan  *contracts.RollbackPlan  `json:"rollback_plan,omitempty"`
	Generation    *GenerationSummary       `json:"generation,omitempty"`
}

// GenerationSummary is the provenance of the consensus round, kept on the
// result so audit consumers can see which backend won and by how much.
type GenerationSummary struct {
	WinnerID   string                         `json:"winner_id"`
	GroupSize  int                            `json:"group_size"`
	Candidates []contracts.ConsensusCandidate `json:"candidates"`
}

// Orchestrator drives a request through synthesis, generation, validation,
// policy, and planning, auditing each transition.
type Orchestrator struct {
	snapshot *schema.Snapshot
	synth    *prompt.Synthesizer
	engine   *consensus.Engine
	policy   *policy.Engine
	planner  *planner.Planner
	audit    store.AuditStore
	logger   *slog.Logger
	now      func() time.Time
}

// New wires an orchestrator. Every collaborator is required; the audit
// store in particular is not optional, because a stage that cannot be
// audited must not run.
func New(snapshot *schema.Snapshot, synth *prompt.Synthesizer, engine *consensus.Engine,
	pol *policy.Engine, pln *planner.Planner, audit store.AuditStore, logger *slog.Logger) (*Orchestrator, error) {
	if snapshot == nil {
		return nil, errors.New("pipeline: nil schema snapshot")
	}
	if synth == nil {
		return nil, errors.New("pipeline: nil synthesizer")
	}
	if engine == nil {
		return nil, errors.New("pipeline: nil consensus engine")
	}
	if pol == nil {
		return nil, errors.New("pipeline: nil policy engine")
	}
	if pln == nil {
		return nil, errors.New("pipeline: nil planner")
	}
	if audit == nil {
		return nil, errors.New("pipeline: nil audit store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		snapshot: snapshot,
		synth:    synth,
		engine:   engine,
		policy:   pol,
		planner:  pln,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Submit runs one request through the pipeline. A non-nil error means the
// pipeline itself could not make a decision (audit unavailable, context
// cancelled); every policy or validation outcome, including denial, comes
// back as a Result with a nil error.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Intent) == "" {
		return nil, fmt.Errorf("%w: empty intent", ErrInvalidRequest)
	}
	if req.ActorID == "" || req.OrganizationID == "" {
		return nil, fmt.Errorf("%w: actor and organization are required", ErrInvalidRequest)
	}

	if req.CorrelationID != "" {
		if res, err := o.replay(ctx, req.CorrelationID); err != nil {
			return nil, err
		} else if res != nil {
			return res, nil
		}
	}

	// A resubmitted id with no recorded verdict runs as a fresh request under
	// that id; the synthesizer embeds it so prompt and trail agree.
	p, err := o.synth.Synthesize(req.Intent, req.ActorID, req.OrganizationID, req.CorrelationID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: synthesize: %w", err)
	}
	corrID := p.CorrelationID

	if _, err := o.audit.Append(ctx, corrID, StageReceived, map[string]any{
		"intent":          req.Intent,
		"actor_id":        req.ActorID,
		"organization_id": req.OrganizationID,
	}); err != nil {
		return nil, fmt.Errorf("pipeline: audit %s: %w", StageReceived, err)
	}

	if _, err := o.audit.Append(ctx, corrID, StageSynthesized, map[string]any{
		"prompt_hash":      canonicalize.HashBytes([]byte(p.Text)),
		"registry_version": o.snapshot.Version().String(),
	}); err != nil {
		return nil, fmt.Errorf("pipeline: audit %s: %w", StageSynthesized, err)
	}

	outcome, err := o.engine.Generate(ctx, p.Text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		res := &Result{
			CorrelationID: corrID,
			Approved:      false,
			Violations: []contracts.Violation{{
				Code:    contracts.CodeGenerationFailure,
				Message: err.Error(),
			}},
		}
		return o.finish(ctx, res)
	}

	summary := &GenerationSummary{
		WinnerID:   outcome.Winner.GeneratorID,
		GroupSize:  outcome.GroupSize,
		Candidates: outcome.Candidates,
	}
	if _, err := o.audit.Append(ctx, corrID, StageGenerated, summary); err != nil {
		return nil, fmt.Errorf("pipeline: audit %s: %w", StageGenerated, err)
	}

	// Generator output is untrusted on identity: the pipeline stamps the
	// authoritative actor, organization, correlation id, and issue time
	// over whatever the model echoed back.
	stamped, err := stampIdentity(outcome.WinnerJSON, req, corrID, p.IssuedAt)
	if err != nil {
		res := &Result{
			CorrelationID: corrID,
			Approved:      false,
			Generation:    summary,
			Violations: []contracts.Violation{{
				Code:    contracts.CodeSchemaViolation,
				Message: fmt.Sprintf("winner candidate is not a JSON object: %v", err),
			}},
		}
		return o.finish(ctx, res)
	}

	cmd, violations := validator.Validate(stamped, o.snapshot)
	if _, err := o.audit.Append(ctx, corrID, StageSchemaValidated, map[string]any{
		"approved":   len(violations) == 0,
		"violations": violations,
	}); err != nil {
		return nil, fmt.Errorf("pipeline: audit %s: %w", StageSchemaValidated, err)
	}
	if len(violations) > 0 {
		return o.finish(ctx, &Result{
			CorrelationID: corrID,
			Approved:      false,
			Generation:    summary,
			Violations:    violations,
		})
	}

	decision := o.policy.Authorize(ctx, cmd)
	if _, err := o.audit.Append(ctx, corrID, StagePolicyValidated, map[string]any{
		"approved":   decision.Approved,
		"violations": decision.Violations,
		"warnings":   decision.Warnings,
	}); err != nil {
		return nil, fmt.Errorf("pipeline: audit %s: %w", StagePolicyValidated, err)
	}
	if !decision.Approved {
		return o.finish(ctx, &Result{
			CorrelationID: corrID,
			Approved:      false,
			Command:       cmd,
			Generation:    summary,
			Violations:    decision.Violations,
			Warnings:      decision.Warnings,
		})
	}

	exec, rollback, err := o.planner.Plan(cmd)
	if err != nil {
		return o.finish(ctx, &Result{
			CorrelationID: corrID,
			Approved:      false,
			Command:       cmd,
			Generation:    summary,
			Warnings:      decision.Warnings,
			Violations: []contracts.Violation{{
				Code:    contracts.CodePlanningFailure,
				Message: err.Error(),
			}},
		})
	}
	if _, err := o.audit.Append(ctx, corrID, StagePlanned, map[string]any{
		"execution_steps": len(exec.Steps),
		"rollback_steps":  len(rollback.Steps),
	}); err != nil {
		return nil, fmt.Errorf("pipeline: audit %s: %w", StagePlanned, err)
	}

	return o.finish(ctx, &Result{
		CorrelationID: corrID,
		Approved:      true,
		Command:       cmd,
		Generation:    summary,
		Warnings:      decision.Warnings,
		ExecutionPlan: exec,
		RollbackPlan:  rollback,
	})
}

// finish writes the terminal audit entry and returns the result. The
// returned-stage entry is what replay serves on resubmission.
func (o *Orchestrator) finish(ctx context.Context, res *Result) (*Result, error) {
	if _, err := o.audit.Append(ctx, res.CorrelationID, StageReturned, res); err != nil {
		return nil, fmt.Errorf("pipeline: audit %s: %w", StageReturned, err)
	}
	o.logger.InfoContext(ctx, "request returned",
		slog.String("correlation_id", res.CorrelationID),
		slog.Bool("approved", res.Approved),
		slog.Int("violations", len(res.Violations)))
	return res, nil
}

// replay returns the recorded verdict for the correlation id, or nil when
// the trail has no returned-stage entry for it yet.
func (o *Orchestrator) replay(ctx context.Context, correlationID string) (*Result, error) {
	entry, err := o.audit.LastByStage(ctx, correlationID, StageReturned)
	if errors.Is(err, store.ErrEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: replay lookup: %w", err)
	}
	var res Result
	if err := json.Unmarshal(entry.Payload, &res); err != nil {
		return nil, fmt.Errorf("pipeline: replay decode: %w", err)
	}
	res.Replayed = true
	o.logger.InfoContext(ctx, "verdict replayed from audit trail",
		slog.String("correlation_id", correlationID))
	return &res, nil
}

func stampIdentity(raw json.RawMessage, req Request, correlationID string, issuedAt time.Time) ([]byte, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	obj["actor_id"] = req.ActorID
	obj["organization_id"] = req.OrganizationID
	obj["correlation_id"] = correlationID
	obj["issued_at"] = issuedAt.UTC().Format(time.RFC3339)
	return json.Marshal(obj)
}
