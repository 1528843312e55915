package reranker

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/campuskb/assist/internal/llm"
	"github.com/campuskb/assist/internal/retriever"
)

func TestOverlapRerank_ExactTermMatchRisesToTop(t *testing.T) {
	results := []retriever.SearchResult{
		{DocumentID: "tuition", Title: "Tuition", Content: "Tuition and fees are due at the start of each term.", Similarity: 0.82},
		{DocumentID: "coop", Title: "Co-op", Content: "The co-op program places students in paid work terms with industry partners.", Similarity: 0.78},
	}

	r := NewOverlapReranker(DefaultOverlapConfig())
	scored, err := r.Rerank(context.Background(), "What is the co-op program?", results, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if scored[0].DocumentID != "coop" {
		t.Fatalf("expected co-op document first, got %q", scored[0].DocumentID)
	}
	if scored[0].TermOverlap <= 0.5 {
		t.Errorf("expected high term overlap for exact match, got %v", scored[0].TermOverlap)
	}
	if scored[1].TermOverlap >= scored[0].TermOverlap {
		t.Errorf("off-topic document should overlap less: %v vs %v",
			scored[1].TermOverlap, scored[0].TermOverlap)
	}
}

func TestOverlapRerank_FinalScoreBlend(t *testing.T) {
	results := []retriever.SearchResult{
		{DocumentID: "a", Content: "housing residence halls", Similarity: 0.5},
	}

	r := NewOverlapReranker(OverlapConfig{SimilarityWeight: 0.7, OverlapWeight: 0.3})
	scored, err := r.Rerank(context.Background(), "housing", results, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := 0.7*0.5 + 0.3*1.0
	if math.Abs(scored[0].Final-want) > 1e-9 {
		t.Errorf("final score = %v, want %v", scored[0].Final, want)
	}
}

func TestOverlapRerank_TieBreakBySimilarityThenID(t *testing.T) {
	// Identical content gives identical overlap; similarity breaks the tie
	// first, then document id.
	results := []retriever.SearchResult{
		{DocumentID: "z", Content: "campus parking permits", Similarity: 0.6},
		{DocumentID: "b", Content: "campus parking permits", Similarity: 0.9},
		{DocumentID: "a", Content: "campus parking permits", Similarity: 0.6},
	}

	r := NewOverlapReranker(DefaultOverlapConfig())
	scored, err := r.Rerank(context.Background(), "parking", results, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := []string{scored[0].DocumentID, scored[1].DocumentID, scored[2].DocumentID}
	if order[0] != "b" || order[1] != "a" || order[2] != "z" {
		t.Errorf("unexpected order: %v", order)
	}
}

func TestOverlapRerank_TruncatesAndRanks(t *testing.T) {
	results := make([]retriever.SearchResult, 6)
	for i := range results {
		results[i] = retriever.SearchResult{
			DocumentID: string(rune('a' + i)),
			Similarity: 1.0 - float64(i)*0.1,
		}
	}

	r := NewOverlapReranker(DefaultOverlapConfig())
	scored, err := r.Rerank(context.Background(), "anything", results, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scored) != 3 {
		t.Fatalf("expected truncation to 3, got %d", len(scored))
	}
	for i, s := range scored {
		if s.Rank != i+1 {
			t.Errorf("result %d has rank %d", i, s.Rank)
		}
	}
}

func TestOverlapRerank_RejectsInvalidK(t *testing.T) {
	r := NewOverlapReranker(DefaultOverlapConfig())
	if _, err := r.Rerank(context.Background(), "q", nil, 0); err == nil {
		t.Fatal("expected error for k=0")
	}
}

func TestOverlapRerank_StopWordOnlyQuestionScoresZero(t *testing.T) {
	results := []retriever.SearchResult{
		{DocumentID: "a", Content: "anything at all", Similarity: 0.4},
	}

	r := NewOverlapReranker(DefaultOverlapConfig())
	scored, err := r.Rerank(context.Background(), "what is it", results, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scored[0].TermOverlap != 0 {
		t.Errorf("expected zero overlap, got %v", scored[0].TermOverlap)
	}
}

type scriptedLLM struct {
	response string
	err      error
	calls    int
}

func (s *scriptedLLM) Generate(_ context.Context, _ string, _ llm.GenerateOptions) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestLLMRerank_UsesModelScores(t *testing.T) {
	client := &scriptedLLM{
		response: `{"scores": [{"doc_index": 0, "score": 0.2}, {"doc_index": 1, "score": 0.95}]}`,
	}
	r := NewLLMReranker(client, NewOverlapReranker(DefaultOverlapConfig()), zap.NewNop())

	results := []retriever.SearchResult{
		{DocumentID: "first", Similarity: 0.9},
		{DocumentID: "second", Similarity: 0.5},
	}
	scored, err := r.Rerank(context.Background(), "q", results, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scored[0].DocumentID != "second" {
		t.Errorf("expected model ordering to win, got %q first", scored[0].DocumentID)
	}
	if scored[0].Final != 0.95 {
		t.Errorf("final = %v, want 0.95", scored[0].Final)
	}
}

func TestLLMRerank_ParsesFencedJSON(t *testing.T) {
	client := &scriptedLLM{
		response: "```json\n{\"scores\": [{\"doc_index\": 0, \"score\": 0.8}]}\n```",
	}
	r := NewLLMReranker(client, NewOverlapReranker(DefaultOverlapConfig()), zap.NewNop())

	scored, err := r.Rerank(context.Background(), "q",
		[]retriever.SearchResult{{DocumentID: "a"}}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scored[0].Final != 0.8 {
		t.Errorf("final = %v, want 0.8", scored[0].Final)
	}
}

func TestLLMRerank_FallsBackOnModelError(t *testing.T) {
	client := &scriptedLLM{err: errors.New("model offline")}
	r := NewLLMReranker(client, NewOverlapReranker(DefaultOverlapConfig()), zap.NewNop())

	results := []retriever.SearchResult{
		{DocumentID: "a", Content: "library hours", Similarity: 0.7},
	}
	scored, err := r.Rerank(context.Background(), "library hours", results, 10)
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}
	if len(scored) != 1 {
		t.Fatalf("expected fallback scoring, got %d results", len(scored))
	}
	// Fallback uses the lexical blend, so the score must reflect overlap.
	if scored[0].TermOverlap != 1.0 {
		t.Errorf("fallback overlap = %v, want 1.0", scored[0].TermOverlap)
	}
}

func TestLLMRerank_FallsBackOnGarbageResponse(t *testing.T) {
	client := &scriptedLLM{response: "I think the first document is best."}
	r := NewLLMReranker(client, NewOverlapReranker(DefaultOverlapConfig()), zap.NewNop())

	scored, err := r.Rerank(context.Background(), "q",
		[]retriever.SearchResult{{DocumentID: "a", Similarity: 0.4}}, 10)
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}
	if len(scored) != 1 {
		t.Fatalf("expected 1 result from fallback, got %d", len(scored))
	}
}

func TestParseRerankResponse_MissingAndOutOfRangeIndices(t *testing.T) {
	scores, err := parseRerankResponse(
		`{"scores": [{"doc_index": 1, "score": 1.5}, {"doc_index": 7, "score": 0.9}]}`, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores[0] != 0.5 {
		t.Errorf("missing index should default to 0.5, got %v", scores[0])
	}
	if scores[1] != 1.0 {
		t.Errorf("out-of-range score should clamp to 1.0, got %v", scores[1])
	}
	if scores[2] != 0.5 {
		t.Errorf("index 7 must be ignored, scores[2] = %v", scores[2])
	}
}
