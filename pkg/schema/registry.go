// Package schema implements the Schema Registry: an immutable, versioned
// catalog of every legal action, every legal target, the exact payload shape
// a command must carry for each (action, target) pair, and worked examples.
//
// A Snapshot is loaded once at process start and never mutated; a new registry
// version is a new Snapshot, never an in-place edit. Every pipeline stage
// reads from the same Snapshot, which is what keeps generator, validator,
// and policy engine speaking the same vocabulary.
//
// Loading is fail-closed: if no snapshot is loadable the process must refuse
// to serve requests.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-one/sovereign-core/pkg/canonicalize"
	"github.com/odyssey-one/sovereign-core/pkg/contracts"
)

// Shape is the compiled payload schema for one (action, target) pair.
type Shape struct {
	raw      json.RawMessage
	compiled *jsonschema.Schema
}

// Validate checks a decoded payload against the shape.
func (s *Shape) Validate(payload map[string]any) error {
	// An absent payload means an empty one; a shape that needs fields will
	// still reject it on its required list.
	if payload == nil {
		payload = map[string]any{}
	}
	// jsonschema validates generic decoded JSON; payloads arrive as
	// map[string]any from the wire already.
	return s.compiled.Validate(mapToGeneric(payload))
}

// RawJSON returns the shape's JSON Schema source, for prompt embedding.
func (s *Shape) RawJSON() json.RawMessage { return s.raw }

// Entry declares one legal (action, target) combination.
type Entry struct {
	Action      contracts.Action
	Target      contracts.Target
	Description string
	Shape       *Shape
	Examples    []contracts.Command
}

type pairKey struct {
	action contracts.Action
	target contracts.Target
}

// Snapshot is an immutable registry snapshot. Safe for concurrent use
// without locking.
type Snapshot struct {
	version    *semver.Version
	entries    map[pairKey]*Entry
	ordered    []*Entry
	promptJSON []byte
}

// Version returns the snapshot's semantic version.
func (s *Snapshot) Version() *semver.Version { return s.version }

// Actions returns the full action vocabulary.
func (s *Snapshot) Actions() []contracts.Action { return contracts.Actions() }

// Targets returns the full target vocabulary.
func (s *Snapshot) Targets() []contracts.Target { return contracts.Targets() }

// ShapeFor returns the payload shape for an (action, target) pair, or false
// if the pair is not a legal combination in this snapshot.
func (s *Snapshot) ShapeFor(action contracts.Action, target contracts.Target) (*Shape, bool) {
	e, ok := s.entries[pairKey{action, target}]
	if !ok {
		return nil, false
	}
	return e.Shape, true
}

// Entries returns every declared combination in load order.
func (s *Snapshot) Entries() []*Entry { return s.ordered }

// Examples returns every worked example command across all entries.
func (s *Snapshot) Examples() []contracts.Command {
	var out []contracts.Command
	for _, e := range s.ordered {
		out = append(out, e.Examples...)
	}
	return out
}

// PromptJSON returns the canonical JSON rendering of the whole snapshot,
// suitable for verbatim embedding into a generator prompt.
func (s *Snapshot) PromptJSON() []byte { return s.promptJSON }

// ---- loading ----

type fileSnapshot struct {
	Version string      `yaml:"version"`
	Entries []fileEntry `yaml:"entries"`
}

type fileEntry struct {
	Action        string           `yaml:"action"`
	Target        string           `yaml:"target"`
	Description   string           `yaml:"description"`
	PayloadSchema map[string]any   `yaml:"payload_schema"`
	Examples      []map[string]any `yaml:"examples"`
}

// LoadFile reads a registry snapshot from a YAML file.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %w", contracts.ErrRegistryUnavailable, path, err)
	}
	return Load(data)
}

// Load parses and compiles a registry snapshot from YAML bytes. Any defect
// in the source (unknown action or target, uncompilable payload schema,
// unparseable version, zero entries) fails the whole load.
func Load(data []byte) (*Snapshot, error) {
	var file fileSnapshot
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse snapshot: %w", contracts.ErrRegistryUnavailable, err)
	}
	if len(file.Entries) == 0 {
		return nil, fmt.Errorf("%w: snapshot declares no entries", contracts.ErrRegistryUnavailable)
	}

	version, err := semver.NewVersion(file.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot version %q: %w", contracts.ErrRegistryUnavailable, file.Version, err)
	}

	snap := &Snapshot{
		version: version,
		entries: make(map[pairKey]*Entry, len(file.Entries)),
	}

	for i, fe := range file.Entries {
		action, err := contracts.ParseAction(fe.Action)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", contracts.ErrRegistryUnavailable, i, err)
		}
		target, err := contracts.ParseTarget(fe.Target)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", contracts.ErrRegistryUnavailable, i, err)
		}
		key := pairKey{action, target}
		if _, dup := snap.entries[key]; dup {
			return nil, fmt.Errorf("%w: duplicate entry for %s %s", contracts.ErrRegistryUnavailable, action, target)
		}

		shape, err := compileShape(string(action), string(target), fe.PayloadSchema)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %s %s: %w", contracts.ErrRegistryUnavailable, action, target, err)
		}

		entry := &Entry{
			Action:      action,
			Target:      target,
			Description: fe.Description,
			Shape:       shape,
		}
		for _, ex := range fe.Examples {
			entry.Examples = append(entry.Examples, contracts.Command{
				Action:  action,
				Target:  target,
				Payload: ex,
			})
		}
		snap.entries[key] = entry
		snap.ordered = append(snap.ordered, entry)
	}

	promptJSON, err := renderPromptJSON(snap)
	if err != nil {
		return nil, fmt.Errorf("%w: render prompt form: %w", contracts.ErrRegistryUnavailable, err)
	}
	snap.promptJSON = promptJSON

	return snap, nil
}

func compileShape(action, target string, source map[string]any) (*Shape, error) {
	if source == nil {
		return nil, fmt.Errorf("payload_schema missing")
	}
	raw, err := json.Marshal(source)
	if err != nil {
		return nil, fmt.Errorf("payload_schema not JSON-convertible: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://odyssey-one.schemas.local/registry/%s_%s.schema.json",
		strings.ToLower(action), strings.ToLower(target))
	if err := c.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("schema load failed: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema compile failed: %w", err)
	}
	return &Shape{raw: raw, compiled: compiled}, nil
}

type promptEntry struct {
	Action        string           `json:"action"`
	Target        string           `json:"target"`
	Description   string           `json:"description,omitempty"`
	PayloadSchema json.RawMessage  `json:"payload_schema"`
	Examples      []map[string]any `json:"examples,omitempty"`
}

func renderPromptJSON(s *Snapshot) ([]byte, error) {
	actions := make([]string, 0, len(contracts.Actions()))
	for _, a := range contracts.Actions() {
		actions = append(actions, string(a))
	}
	targets := make([]string, 0, len(contracts.Targets()))
	for _, t := range contracts.Targets() {
		targets = append(targets, string(t))
	}

	entries := make([]promptEntry, 0, len(s.ordered))
	for _, e := range s.ordered {
		pe := promptEntry{
			Action:        string(e.Action),
			Target:        string(e.Target),
			Description:   e.Description,
			PayloadSchema: e.Shape.RawJSON(),
		}
		for _, ex := range e.Examples {
			pe.Examples = append(pe.Examples, ex.Payload)
		}
		entries = append(entries, pe)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Action != entries[j].Action {
			return entries[i].Action < entries[j].Action
		}
		return entries[i].Target < entries[j].Target
	})

	return canonicalize.JCS(struct {
		Version string        `json:"version"`
		Actions []string      `json:"actions"`
		Targets []string      `json:"targets"`
		Entries []promptEntry `json:"entries"`
	}{
		Version: s.version.String(),
		Actions: actions,
		Targets: targets,
		Entries: entries,
	})
}

// mapToGeneric round-trips arbitrary map values through JSON decoding so the
// schema validator always sees the generic types it expects (float64 numbers,
// []any arrays), even for payloads built in Go code.
func mapToGeneric(m map[string]any) any {
	data, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return m
	}
	return generic
}
