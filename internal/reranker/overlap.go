package reranker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/campuskb/assist/internal/retriever"
)

var _ Reranker = (*OverlapReranker)(nil)

// stopWords are question terms that carry no topical signal and are excluded
// from the overlap computation.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "do": {}, "does": {}, "did": {}, "can": {}, "could": {},
	"will": {}, "would": {}, "should": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "how": {}, "why": {}, "i": {}, "my": {}, "me": {},
	"it": {}, "its": {}, "of": {}, "to": {}, "in": {}, "on": {}, "at": {},
	"for": {}, "with": {}, "and": {}, "or": {}, "about": {}, "there": {},
}

// OverlapConfig holds the score blend weights.
type OverlapConfig struct {
	SimilarityWeight float64
	OverlapWeight    float64
}

// DefaultOverlapConfig weights vector similarity over lexical overlap.
func DefaultOverlapConfig() OverlapConfig {
	return OverlapConfig{SimilarityWeight: 0.7, OverlapWeight: 0.3}
}

// OverlapReranker blends vector similarity with lexical term overlap. It makes
// no external calls and never fails on scoring.
type OverlapReranker struct {
	cfg OverlapConfig
}

func NewOverlapReranker(cfg OverlapConfig) *OverlapReranker {
	return &OverlapReranker{cfg: cfg}
}

func (r *OverlapReranker) Rerank(_ context.Context, question string, results []retriever.SearchResult, k int) ([]ScoredResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("rerank: k must be positive, got %d", k)
	}

	terms := questionTerms(question)

	scored := make([]ScoredResult, 0, len(results))
	for _, res := range results {
		overlap := termOverlap(terms, res.Content)
		scored = append(scored, ScoredResult{
			SearchResult: res,
			TermOverlap:  overlap,
			Final:        r.cfg.SimilarityWeight*res.Similarity + r.cfg.OverlapWeight*overlap,
		})
	}

	sortScored(scored)

	if len(scored) > k {
		scored = scored[:k]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored, nil
}

// sortScored orders by final score descending, breaking ties by vector
// similarity descending and then document id ascending so the ordering is
// stable across runs.
func sortScored(scored []ScoredResult) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Final != scored[j].Final {
			return scored[i].Final > scored[j].Final
		}
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].DocumentID < scored[j].DocumentID
	})
}

// questionTerms lowercases and splits the question, dropping stop words and
// punctuation so only topical terms remain.
func questionTerms(question string) []string {
	fields := strings.Fields(strings.ToLower(question))
	terms := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]")
		if f == "" {
			continue
		}
		if _, skip := stopWords[f]; skip {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

// termOverlap returns the fraction of question terms that appear in the
// document content. A question with no topical terms scores zero.
func termOverlap(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lowered := strings.ToLower(content)
	matched := 0
	for _, term := range terms {
		if strings.Contains(lowered, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
