package generator

import "context"

// StaticBackend returns a canned response. Used by tests and by local
// development setups that have no model endpoint available.
type StaticBackend struct {
	name    string
	respond func(ctx context.Context, prompt string) (string, error)
}

// NewStaticBackend wraps a response function as a Backend.
func NewStaticBackend(name string, respond func(ctx context.Context, prompt string) (string, error)) *StaticBackend {
	return &StaticBackend{name: name, respond: respond}
}

func (b *StaticBackend) Name() string { return b.name }

func (b *StaticBackend) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return b.respond(ctx, prompt)
}
