// Package generator defines the backend boundary of the pipeline: anything
// that can turn a prompt into raw candidate text. The pipeline treats every
// backend identically regardless of vendor; backend identity only matters
// for the consensus tie-break.
package generator

import "context"

// Backend is a single generator endpoint.
type Backend interface {
	// Name identifies the backend for provenance and priority ordering.
	Name() string
	// Generate produces raw candidate text for the prompt. Implementations
	// must honor ctx cancellation and deadlines.
	Generate(ctx context.Context, prompt string) (string, error)
}
