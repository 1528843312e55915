package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore implements VectorStore using Qdrant.
//
// The collection is expected to be provisioned externally with Euclidean
// distance over normalized embeddings, so the score Qdrant reports is the
// raw distance in [0, 2].
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStore creates a new Qdrant vector store client.
// url should be in format "host:port" (e.g., "localhost:6334").
func NewQdrantStore(ctx context.Context, url, collection string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client, collection: collection}, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// CollectionExists checks if the configured collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// Query returns the topK nearest documents to vector, closest first.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Hit, error) {
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	if filter != nil && filter.UniversityID != "" {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("university_id", filter.UniversityID),
			},
		}
	}

	response, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	hits := make([]Hit, 0, len(response))
	for _, point := range response {
		hit := Hit{
			DocumentID: point.Id.GetUuid(),
			Distance:   point.Score,
			Metadata:   make(map[string]string),
		}

		if payload := point.Payload; payload != nil {
			for k, v := range payload {
				switch k {
				case "title":
					hit.Title = v.GetStringValue()
				case "content":
					hit.Content = v.GetStringValue()
				case "source_url":
					hit.SourceURL = v.GetStringValue()
				case "university_id":
					hit.UniversityID = v.GetStringValue()
				default:
					hit.Metadata[k] = v.GetStringValue()
				}
			}
		}

		hits = append(hits, hit)
	}

	return hits, nil
}

var _ VectorStore = (*QdrantStore)(nil)
