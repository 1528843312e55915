// Package reranker reorders retrieval candidates so that the documents most
// relevant to the literal question text rise to the top before context
// assembly.
package reranker

import (
	"context"

	"github.com/campuskb/assist/internal/retriever"
)

// ScoredResult is a retrieval candidate annotated with reranking scores.
type ScoredResult struct {
	retriever.SearchResult

	// TermOverlap is the fraction of question terms present in the
	// document content, in [0,1].
	TermOverlap float64
	// Final is the combined score used for ordering.
	Final float64
}

// Reranker reorders candidates and truncates to the top k.
type Reranker interface {
	Rerank(ctx context.Context, question string, results []retriever.SearchResult, k int) ([]ScoredResult, error)
}
