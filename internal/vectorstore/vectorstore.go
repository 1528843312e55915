// Package vectorstore provides interfaces and implementations for vector similarity search.
package vectorstore

import (
	"context"
)

// Hit is a single nearest-neighbour match returned by the store.
// Distance is the raw store distance (non-negative, lower is closer);
// converting to a similarity is the retriever's job.
type Hit struct {
	DocumentID   string
	Title        string
	Content      string
	SourceURL    string
	UniversityID string
	Metadata     map[string]string
	Distance     float32
}

// Filter restricts a query to documents matching the given constraints.
// Zero-value fields are not applied.
type Filter struct {
	UniversityID string
}

// VectorStore defines the read interface against the external similarity store.
// Documents are owned by the store; this service only queries them.
type VectorStore interface {
	// Query returns the topK nearest documents to vector, closest first.
	Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Hit, error)

	// CollectionExists reports whether the backing collection has been provisioned.
	CollectionExists(ctx context.Context) (bool, error)
}
