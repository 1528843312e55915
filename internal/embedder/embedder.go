// Package embedder provides interfaces and implementations for text embedding.
package embedder

import (
	"context"
	"errors"
)

// ErrEmptyResponse indicates the provider answered without an embedding.
var ErrEmptyResponse = errors.New("embedder: empty response")

// Embedder defines the interface for text embedding services.
// Implementations must be deterministic for identical input; the caching
// decorator relies on that.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}
