// Package validator performs the structural check of a winning candidate
// against the Schema Registry. It is a pure function of its inputs: no I/O,
// no network, no knowledge of actors or tenants beyond identifier shape.
// That purity is why it is a separate stage from the policy engine.
package validator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/odyssey-one/sovereign-core/pkg/contracts"
	"github.com/odyssey-one/sovereign-core/pkg/schema"
)

// wireCommand is the candidate as it arrives off the wire, before any field
// has been trusted.
type wireCommand struct {
	Action         string         `json:"action"`
	Target         string         `json:"target"`
	Payload        map[string]any `json:"payload"`
	ActorID        string         `json:"actor_id"`
	OrganizationID string         `json:"organization_id"`
	IssuedAt       string         `json:"issued_at"`
	CorrelationID  string         `json:"correlation_id"`
}

// Validate parses a raw candidate and checks it structurally against the
// registry snapshot. It collects every violation it can find rather than
// stopping at the first; only an unparseable document short-circuits, since
// nothing further can be checked without a parse.
//
// On success the returned Command is fully typed; on failure the Command is
// nil and at least one violation is present.
func Validate(raw []byte, snap *schema.Snapshot) (*contracts.Command, []contracts.Violation) {
	var wire wireCommand
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, []contracts.Violation{{
			Code:    contracts.CodeSchemaViolation,
			Message: fmt.Sprintf("candidate is not well-formed JSON: %v", err),
		}}
	}

	var violations []contracts.Violation
	flag := func(format string, args ...any) {
		violations = append(violations, contracts.Violation{
			Code:    contracts.CodeSchemaViolation,
			Message: fmt.Sprintf(format, args...),
		})
	}

	action, err := contracts.ParseAction(wire.Action)
	if err != nil {
		flag("action %q is not in the registry vocabulary", wire.Action)
	}
	target, err := contracts.ParseTarget(wire.Target)
	if err != nil {
		flag("target %q is not in the registry vocabulary", wire.Target)
	}

	// Payload shape is only checkable once both enum members resolved.
	if action != "" && target != "" {
		shape, ok := snap.ShapeFor(action, target)
		if !ok {
			flag("combination %s %s is not declared in the registry", action, target)
		} else if err := shape.Validate(wire.Payload); err != nil {
			flag("payload does not satisfy the declared shape for %s %s: %v", action, target, err)
		}
	}

	if !wellFormedIdentifier(wire.ActorID) {
		flag("actor_id %q is not a well-formed identifier", wire.ActorID)
	}
	if !wellFormedIdentifier(wire.OrganizationID) {
		flag("organization_id %q is not a well-formed identifier", wire.OrganizationID)
	}

	issuedAt, err := time.Parse(time.RFC3339, wire.IssuedAt)
	if err != nil {
		flag("issued_at %q is not a valid RFC 3339 timestamp", wire.IssuedAt)
	}

	if len(violations) > 0 {
		return nil, violations
	}

	payload := wire.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return &contracts.Command{
		Action:         action,
		Target:         target,
		Payload:        payload,
		ActorID:        wire.ActorID,
		OrganizationID: wire.OrganizationID,
		IssuedAt:       issuedAt,
		CorrelationID:  wire.CorrelationID,
	}, nil
}

// wellFormedIdentifier accepts non-empty identifiers made of unreserved
// URL-safe characters. Identifiers flow into audit keys and store queries,
// so the charset is kept tight.
func wellFormedIdentifier(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == '@':
		default:
			return false
		}
	}
	return true
}
