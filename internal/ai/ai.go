package ai

import "context"

// Request is a single prompt exchange with a text-generation provider.
type Request struct {
	// System carries the role instruction. Providers that have no native
	// system slot prepend it to the user prompt.
	System string
	// User is the task-specific prompt body.
	User string
	// Temperature controls sampling. Zero requests the most deterministic
	// output the provider offers.
	Temperature float32
}

// Generator produces free text from a prompt. Implementations are expected to
// return an error for configuration problems, transport failures and empty
// responses; callers fall back to their degraded paths on any error.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
}
