package translator

import "context"

// ============================================================================
// TRANSLATOR — Boundary to the code generation service
// ============================================================================
// The translator is the only component that calls an external model. It
// sends the prompt built from the dataset description and receives free-form
// text that should hold one code block. It never sees more of the data than
// the description's sample rows.
// ============================================================================

// Generator sends one request to a generation service and returns the raw
// completion text.
// Implementations: GeminiGenerator, OpenAIGenerator.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is one generation call. History holds earlier exchanges of the
// conversation, oldest first.
type Request struct {
	Prompt  string
	History []Exchange
}

// Exchange is one prompt and the model's reply to it.
type Exchange struct {
	Prompt string `json:"prompt"`
	Reply  string `json:"reply"`
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
