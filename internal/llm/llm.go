// Package llm provides interfaces and implementations for generative model clients.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse indicates the model returned a well-formed but empty
// completion. It is distinct from transport or API errors.
var ErrEmptyResponse = errors.New("llm: empty response")

// GenerateOptions configures the generation request.
type GenerateOptions struct {
	// Model specifies the model to use (e.g., "llama3.2"). Empty uses the
	// client's default.
	Model string

	// SystemPrompt sets the system-level instructions for the model.
	SystemPrompt string

	// Temperature controls randomness in generation (0.0 = deterministic).
	Temperature float32

	// MaxTokens limits the maximum number of tokens in the response (0 = no limit).
	MaxTokens int
}

// Client defines the interface for generative model clients.
// Callers bound each call with a context deadline; implementations must
// honor cancellation.
type Client interface {
	// Generate sends a prompt to the model and returns the complete response.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
