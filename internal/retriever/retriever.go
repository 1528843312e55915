// Package retriever implements hybrid retrieval: semantic search over the
// original and expanded queries, merged and deduplicated into one ranked
// candidate pool.
package retriever

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campuskb/assist/internal/embedder"
	"github.com/campuskb/assist/internal/expander"
	"github.com/campuskb/assist/internal/vectorstore"
)

// SearchResult is one retrieved document with its similarity to the query.
// Similarity is in [0,1], higher is closer; Rank is 1-based within one
// result set and similarity is non-increasing with rank.
type SearchResult struct {
	DocumentID   string
	Title        string
	Content      string
	SourceURL    string
	UniversityID string
	Similarity   float64
	Rank         int
}

// Retriever fans semantic search out over all expanded queries and merges
// the per-query result sets into a deduplicated candidate pool.
type Retriever struct {
	embedder embedder.Embedder
	store    vectorstore.VectorStore
	logger   *zap.Logger
}

// New creates a Retriever.
func New(emb embedder.Embedder, store vectorstore.VectorStore, logger *zap.Logger) *Retriever {
	return &Retriever{embedder: emb, store: store, logger: logger}
}

// Retrieve returns up to 2k candidates for the query set, sorted by
// similarity descending with document id as the tie-break, so the result is
// deterministic regardless of per-query completion order.
//
// A failure on one query is logged and skipped; the pool is built from
// whatever queries succeeded. Zero candidates is not an error: callers treat
// it as insufficient information.
func (r *Retriever) Retrieve(ctx context.Context, queries expander.QuerySet, k int, filter *vectorstore.Filter) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("retrieve: k must be positive, got %d", k)
	}

	all := queries.Queries()
	perQuery := make([][]vectorstore.Hit, len(all))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for i, q := range all {
		g.Go(func() error {
			hits, err := r.searchOne(gctx, q, 2*k, filter)
			if err != nil {
				// Partial failure: drop this query, keep the rest.
				r.logger.Warn("retrieval failed for query",
					zap.String("query", q),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			perQuery[i] = hits
			mu.Unlock()
			return nil
		})
	}

	// Per-query errors are swallowed above, so Wait only fails on context
	// cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeHits(perQuery, 2*k), nil
}

func (r *Retriever) searchOne(ctx context.Context, query string, topK int, filter *vectorstore.Filter) ([]vectorstore.Hit, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.store.Query(ctx, vector, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	return hits, nil
}

// mergeHits concatenates the per-query hit lists, deduplicates by document id
// keeping the highest similarity, sorts deterministically, and truncates the
// pool to limit.
func mergeHits(perQuery [][]vectorstore.Hit, limit int) []SearchResult {
	best := make(map[string]SearchResult)

	for _, hits := range perQuery {
		for _, h := range hits {
			sim := similarityFromDistance(h.Distance)
			if prev, ok := best[h.DocumentID]; ok && prev.Similarity >= sim {
				continue
			}
			best[h.DocumentID] = SearchResult{
				DocumentID:   h.DocumentID,
				Title:        h.Title,
				Content:      h.Content,
				SourceURL:    h.SourceURL,
				UniversityID: h.UniversityID,
				Similarity:   sim,
			}
		}
	}

	merged := make([]SearchResult, 0, len(best))
	for _, res := range best {
		merged = append(merged, res)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Similarity != merged[j].Similarity {
			return merged[i].Similarity > merged[j].Similarity
		}
		return merged[i].DocumentID < merged[j].DocumentID
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	for i := range merged {
		merged[i].Rank = i + 1
	}
	return merged
}

// similarityFromDistance converts a store distance to a similarity in [0,1].
// For normalized embeddings under Euclidean distance, d is in [0,2].
func similarityFromDistance(d float32) float64 {
	sim := 1 - float64(d)/2
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
