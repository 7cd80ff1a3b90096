// Package prompt builds the instruction payload sent to generator backends.
// Every backend receives the same prompt, with the full Schema Registry
// snapshot embedded verbatim, so all of them are constrained to the same
// vocabulary.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-one/sovereign-core/pkg/schema"
)

// Prompt is the synthesized instruction payload plus the request's identity.
// Its correlation id follows the request through every later stage.
type Prompt struct {
	Text           string    `json:"text"`
	CorrelationID  string    `json:"correlation_id"`
	ActorID        string    `json:"actor_id"`
	OrganizationID string    `json:"organization_id"`
	IssuedAt       time.Time `json:"issued_at"`
}

// Synthesizer renders prompts against a fixed registry snapshot. It has no
// side effects beyond string construction; the id and clock sources exist so
// tests can pin them.
type Synthesizer struct {
	snapshot *schema.Snapshot
	newID    func() string
	now      func() time.Time
}

// New creates a Synthesizer over the given snapshot.
func New(snapshot *schema.Snapshot) *Synthesizer {
	return &Synthesizer{
		snapshot: snapshot,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// NewDeterministic creates a Synthesizer with pinned id and clock sources.
func NewDeterministic(snapshot *schema.Snapshot, newID func() string, now func() time.Time) *Synthesizer {
	return &Synthesizer{snapshot: snapshot, newID: newID, now: now}
}

// Synthesize builds the prompt for one intent. An empty correlationID mints
// a fresh one; a caller-supplied id is embedded as-is, so the prompt and the
// audit trail carry the same id.
func (s *Synthesizer) Synthesize(intent, actorID, organizationID, correlationID string) (*Prompt, error) {
	if strings.TrimSpace(intent) == "" {
		return nil, fmt.Errorf("prompt: intent must not be empty")
	}

	if correlationID == "" {
		correlationID = s.newID()
	}
	issuedAt := s.now().UTC()

	var b strings.Builder
	b.WriteString("You translate an operator's request into exactly one structured command.\n\n")
	fmt.Fprintf(&b, "Request: %s\n", intent)
	fmt.Fprintf(&b, "Requesting actor: %s\n", actorID)
	fmt.Fprintf(&b, "Organization: %s\n", organizationID)
	fmt.Fprintf(&b, "Correlation id: %s\n", correlationID)
	fmt.Fprintf(&b, "Issued at: %s\n\n", issuedAt.Format(time.RFC3339))

	b.WriteString("The command catalog below is the complete vocabulary. ")
	b.WriteString("You may only use an action, a target, and a payload shape that the catalog declares. ")
	b.WriteString("Do not invent actions, targets, or payload fields.\n\n")
	b.WriteString("COMMAND CATALOG (registry snapshot, verbatim):\n")
	b.Write(s.snapshot.PromptJSON())
	b.WriteString("\n\n")

	b.WriteString("Respond with a single JSON object and nothing else, of the form:\n")
	b.WriteString(`{"action": "<ACTION>", "target": "<TARGET>", "payload": {...}, `)
	fmt.Fprintf(&b, `"actor_id": %q, "organization_id": %q, "correlation_id": %q, "issued_at": %q}`,
		actorID, organizationID, correlationID, issuedAt.Format(time.RFC3339))
	b.WriteString("\nThe payload must satisfy the declared payload_schema for the chosen action and target.\n")

	return &Prompt{
		Text:           b.String(),
		CorrelationID:  correlationID,
		ActorID:        actorID,
		OrganizationID: organizationID,
		IssuedAt:       issuedAt,
	}, nil
}
