package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/campuskb/assist/internal/assembler"
	"github.com/campuskb/assist/internal/confidence"
	"github.com/campuskb/assist/internal/expander"
	"github.com/campuskb/assist/internal/history"
	"github.com/campuskb/assist/internal/llm"
	"github.com/campuskb/assist/internal/reranker"
	"github.com/campuskb/assist/internal/retriever"
	"github.com/campuskb/assist/internal/synthesizer"
	"github.com/campuskb/assist/internal/vectorstore"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}
func (stubEmbedder) Dimension() int    { return 2 }
func (stubEmbedder) ModelName() string { return "stub" }

type stubStore struct {
	mu         sync.Mutex
	hits       []vectorstore.Hit
	lastFilter *vectorstore.Filter
}

func (s *stubStore) Query(_ context.Context, _ []float32, _ int, filter *vectorstore.Filter) ([]vectorstore.Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	return s.hits, nil
}
func (s *stubStore) CollectionExists(_ context.Context) (bool, error) { return true, nil }

// routingLLM answers expansion prompts with variants and everything else with
// a fixed answer, mirroring how one client serves both stages.
type routingLLM struct {
	answer    string
	answerErr error
	calls     []string
}

func (r *routingLLM) Generate(_ context.Context, prompt string, _ llm.GenerateOptions) (string, error) {
	r.calls = append(r.calls, prompt)
	if strings.Contains(prompt, "alternative ways") {
		return "1. campus housing options\n2. residence hall availability", nil
	}
	if r.answerErr != nil {
		return "", r.answerErr
	}
	return r.answer, nil
}

func newTestPipeline(t *testing.T, client llm.Client, store vectorstore.VectorStore) (*Pipeline, history.Store) {
	t.Helper()
	logger := zap.NewNop()
	hist := history.NewDefaultMemoryStore()
	t.Cleanup(hist.Close)

	retry := llm.RetryPolicy{Timeout: time.Second, Retries: 0, Backoff: time.Millisecond}
	exp := expander.New(client, expander.Config{MaxVariants: 3, Retry: retry}, logger)
	ret := retriever.New(stubEmbedder{}, store, logger)
	rr := reranker.NewOverlapReranker(reranker.DefaultOverlapConfig())
	asm := assembler.New(assembler.DefaultConfig(), logger)
	syn := synthesizer.New(client, hist, synthesizer.Config{Retry: retry, MaxTokens: 512}, logger)
	scorer := confidence.New(confidence.DefaultConfig())

	return New(exp, ret, rr, asm, syn, scorer, hist, Config{TopK: 5, HistoryWindow: 3}, logger), hist
}

func campusHits() []vectorstore.Hit {
	return []vectorstore.Hit{
		{DocumentID: "housing-1", Title: "Housing", Content: "Residence halls offer single and double rooms.", SourceURL: "https://example.edu/housing", Distance: 0.2},
		{DocumentID: "dining-1", Title: "Dining", Content: "Meal plans cover all campus dining halls.", SourceURL: "https://example.edu/dining", Distance: 0.6},
	}
}

func TestAsk_EndToEnd(t *testing.T) {
	client := &routingLLM{answer: "Residence halls offer both single and double rooms for undergraduate students at the university each year."}
	store := &stubStore{hits: campusHits()}
	p, hist := newTestPipeline(t, client, store)

	resp, err := p.Ask(context.Background(), Request{
		SessionID: "sess-1",
		Question:  "What housing is available?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Answer != client.answer {
		t.Errorf("unexpected answer: %q", resp.Answer)
	}
	if len(resp.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(resp.Sources))
	}
	if resp.Sources[0].Title != "Housing" {
		t.Errorf("expected highest-similarity source first, got %q", resp.Sources[0].Title)
	}
	if resp.Confidence.Score <= 0 || resp.Confidence.Score > 1 {
		t.Errorf("confidence out of range: %v", resp.Confidence.Score)
	}
	if len(resp.Degraded) != 0 {
		t.Errorf("unexpected degradations: %v", resp.Degraded)
	}
	if resp.TotalTime < resp.GenerationTime {
		t.Errorf("total %v must cover generation %v", resp.TotalTime, resp.GenerationTime)
	}

	turns, _ := hist.Recent(context.Background(), "sess-1", 5)
	if len(turns) != 1 {
		t.Errorf("expected exchange recorded, got %d turns", len(turns))
	}
}

func TestAsk_EmptyCorpusSkipsGeneration(t *testing.T) {
	client := &routingLLM{answer: "should never be used"}
	store := &stubStore{}
	p, hist := newTestPipeline(t, client, store)

	resp, err := p.Ask(context.Background(), Request{SessionID: "sess-1", Question: "What housing is available?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Answer != NoAnswerResponse {
		t.Errorf("expected no-answer response, got %q", resp.Answer)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("expected no sources, got %v", resp.Sources)
	}
	if resp.Confidence.Score > 0.2+1e-9 {
		t.Errorf("expected low confidence, got %v", resp.Confidence.Score)
	}
	for _, prompt := range client.calls {
		if strings.Contains(prompt, "Answer using only the context") {
			t.Error("generation model must not be called with no candidates")
		}
	}

	// The unanswered exchange must not enter history.
	turns, _ := hist.Recent(context.Background(), "sess-1", 5)
	if len(turns) != 0 {
		t.Errorf("expected empty history, got %+v", turns)
	}
}

func TestAsk_GenerationFailureDegrades(t *testing.T) {
	client := &routingLLM{answerErr: errors.New("model offline")}
	store := &stubStore{hits: campusHits()}
	p, _ := newTestPipeline(t, client, store)

	resp, err := p.Ask(context.Background(), Request{Question: "What housing is available?"})
	if err != nil {
		t.Fatalf("degraded generation must not error: %v", err)
	}
	if resp.Answer != synthesizer.FallbackAnswer {
		t.Errorf("expected fallback answer, got %q", resp.Answer)
	}
	found := false
	for _, d := range resp.Degraded {
		if d == "generation_failed" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected generation_failed in degradations, got %v", resp.Degraded)
	}
}

func TestAsk_UniversityFilterPropagates(t *testing.T) {
	client := &routingLLM{answer: "Filtered answer about one campus with enough words to pass the length checks in scoring."}
	store := &stubStore{hits: campusHits()}
	p, _ := newTestPipeline(t, client, store)

	_, err := p.Ask(context.Background(), Request{Question: "housing", UniversityID: "uni-42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lastFilter == nil || store.lastFilter.UniversityID != "uni-42" {
		t.Errorf("expected university filter to reach the store, got %+v", store.lastFilter)
	}
}

func TestAsk_RejectsEmptyQuestion(t *testing.T) {
	p, _ := newTestPipeline(t, &routingLLM{}, &stubStore{})
	if _, err := p.Ask(context.Background(), Request{Question: "   "}); err == nil {
		t.Fatal("expected error for blank question")
	}
}
