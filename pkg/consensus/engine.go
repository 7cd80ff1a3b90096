// Package consensus dispatches one prompt to N generator backends in
// parallel and selects a single winning candidate.
//
// This is the only stage that tolerates partial failure of external
// collaborators: a slow or broken backend is recorded and excluded, and the
// pipeline degrades to fewer candidates, down to the point where at least one
// parseable candidate is required.
//
// Selection is deterministic given the candidate contents and the configured
// backend order; arrival order never affects the outcome.
package consensus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-one/sovereign-core/pkg/canonicalize"
	"github.com/odyssey-one/sovereign-core/pkg/contracts"
	"github.com/odyssey-one/sovereign-core/pkg/generator"
)

// Engine fans a prompt out to its backends and folds the answers back in.
// The backend slice order is the priority order: index 0 wins ties.
type Engine struct {
	backends []generator.Backend
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates an Engine. At least one backend is required, and backend names
// must be unique since they key provenance and priority.
func New(backends []generator.Backend, timeout time.Duration, logger *slog.Logger) (*Engine, error) {
	if len(backends) == 0 {
		return nil, errors.New("consensus: at least one generator backend is required")
	}
	seen := make(map[string]struct{}, len(backends))
	for _, b := range backends {
		if _, dup := seen[b.Name()]; dup {
			return nil, fmt.Errorf("consensus: duplicate backend name %q", b.Name())
		}
		seen[b.Name()] = struct{}{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{backends: backends, timeout: timeout, logger: logger}, nil
}

// Outcome is the result of one consensus round.
type Outcome struct {
	// Winner is the selected candidate's provenance record.
	Winner contracts.ConsensusCandidate `json:"winner"`
	// WinnerJSON is the winner's extracted JSON object.
	WinnerJSON json.RawMessage `json:"winner_json"`
	// GroupSize is how many candidates agreed with the winner structurally.
	GroupSize int `json:"group_size"`
	// Candidates holds every dispatch's provenance, in backend order.
	Candidates []contracts.ConsensusCandidate `json:"candidates"`
}

// Generate dispatches the prompt to every backend concurrently, each bounded
// by the engine's per-dispatch timeout, then selects a winner. A backend that
// exceeds its bound is recorded as timed out and excluded, not retried.
func (e *Engine) Generate(ctx context.Context, prompt string) (*Outcome, error) {
	candidates := make([]contracts.ConsensusCandidate, len(e.backends))

	var wg sync.WaitGroup
	for i, b := range e.backends {
		wg.Add(1)
		go func(i int, b generator.Backend) {
			defer wg.Done()
			// Independent timeout per backend: one slow endpoint must not
			// hold the others past the bound.
			dispatchCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			start := time.Now()
			text, err := b.Generate(dispatchCtx, prompt)
			cand := contracts.ConsensusCandidate{
				GeneratorID: b.Name(),
				Latency:     time.Since(start),
			}
			switch {
			case err == nil:
				cand.Status = contracts.CandidateSucceeded
				cand.RawText = text
			case errors.Is(err, context.DeadlineExceeded):
				cand.Status = contracts.CandidateTimedOut
				cand.Error = err.Error()
			default:
				cand.Status = contracts.CandidateErrored
				cand.Error = err.Error()
			}
			candidates[i] = cand
		}(i, b)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.selectWinner(candidates)
}

type parsedCandidate struct {
	index    int // backend index doubles as priority rank
	identity string
	raw      json.RawMessage
}

func (e *Engine) selectWinner(candidates []contracts.ConsensusCandidate) (*Outcome, error) {
	var parsed []parsedCandidate
	for i, cand := range candidates {
		if cand.Status != contracts.CandidateSucceeded {
			continue
		}
		raw, identity, err := parseCandidate(cand.RawText)
		if err != nil {
			e.logger.Warn("discarding unparseable candidate",
				"generator", cand.GeneratorID, "error", err)
			continue
		}
		parsed = append(parsed, parsedCandidate{index: i, identity: identity, raw: raw})
	}

	if len(parsed) == 0 {
		return nil, fmt.Errorf("%w: %s", contracts.ErrNoConsensus, summarizeFailures(candidates))
	}

	// Group by structural identity of (action, target, payload), volatile
	// fields excluded.
	groups := make(map[string][]parsedCandidate)
	for _, p := range parsed {
		groups[p.identity] = append(groups[p.identity], p)
	}

	identities := make([]string, 0, len(groups))
	for id := range groups {
		identities = append(identities, id)
	}
	// Largest group wins; between equal-size groups the one containing the
	// highest-priority backend wins. Backend order is the priority order.
	sort.Slice(identities, func(a, b int) bool {
		ga, gb := groups[identities[a]], groups[identities[b]]
		if len(ga) != len(gb) {
			return len(ga) > len(gb)
		}
		return bestRank(ga) < bestRank(gb)
	})

	winning := groups[identities[0]]
	sort.Slice(winning, func(a, b int) bool { return winning[a].index < winning[b].index })
	winner := winning[0]

	return &Outcome{
		Winner:     candidates[winner.index],
		WinnerJSON: winner.raw,
		GroupSize:  len(winning),
		Candidates: candidates,
	}, nil
}

func bestRank(group []parsedCandidate) int {
	best := group[0].index
	for _, p := range group[1:] {
		if p.index < best {
			best = p.index
		}
	}
	return best
}

// candidateShape is the minimal structure a candidate must expose to be
// groupable. Full structural validation belongs to the validator stage.
type candidateShape struct {
	Action  string         `json:"action"`
	Target  string         `json:"target"`
	Payload map[string]any `json:"payload"`
}

func parseCandidate(text string) (json.RawMessage, string, error) {
	raw := extractJSON(text)
	if raw == nil {
		return nil, "", errors.New("no JSON object found in candidate text")
	}
	var shape candidateShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, "", fmt.Errorf("candidate is not a JSON object: %w", err)
	}
	identity, err := canonicalize.CommandIdentity(shape.Action, shape.Target, shape.Payload)
	if err != nil {
		return nil, "", fmt.Errorf("candidate identity hash: %w", err)
	}
	return raw, identity, nil
}

// extractJSON pulls the outermost JSON object out of generator text. Model
// output frequently wraps the object in markdown fences or prose.
func extractJSON(text string) json.RawMessage {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil
	}
	return json.RawMessage(text[start : end+1])
}

func summarizeFailures(candidates []contracts.ConsensusCandidate) string {
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Error != "" {
			parts = append(parts, fmt.Sprintf("%s %s (%s)", c.GeneratorID, c.Status, c.Error))
		} else {
			parts = append(parts, fmt.Sprintf("%s %s", c.GeneratorID, c.Status))
		}
	}
	return strings.Join(parts, "; ")
}
