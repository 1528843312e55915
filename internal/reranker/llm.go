package reranker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/campuskb/assist/internal/llm"
	"github.com/campuskb/assist/internal/retriever"
)

var _ Reranker = (*LLMReranker)(nil)

// LLMReranker asks a model to score each query-document pair directly. The
// model sees the question and the document together, which catches relevance
// that vector similarity alone misses. On any model or parse failure it falls
// back to the lexical overlap scoring instead of failing the request.
type LLMReranker struct {
	client   llm.Client
	model    string
	fallback *OverlapReranker
	logger   *zap.Logger
}

// LLMRerankerOption configures an LLMReranker.
type LLMRerankerOption func(*LLMReranker)

// WithModel sets the scoring model.
func WithModel(model string) LLMRerankerOption {
	return func(r *LLMReranker) {
		r.model = model
	}
}

func NewLLMReranker(client llm.Client, fallback *OverlapReranker, logger *zap.Logger, opts ...LLMRerankerOption) *LLMReranker {
	r := &LLMReranker{
		client:   client,
		fallback: fallback,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type relevanceScore struct {
	DocIndex int     `json:"doc_index"`
	Score    float64 `json:"score"`
}

type rerankResponse struct {
	Scores []relevanceScore `json:"scores"`
}

func (r *LLMReranker) Rerank(ctx context.Context, question string, results []retriever.SearchResult, k int) ([]ScoredResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("rerank: k must be positive, got %d", k)
	}
	if len(results) == 0 {
		return nil, nil
	}

	prompt := buildRerankPrompt(question, results)
	opts := llm.GenerateOptions{
		Model:       r.model,
		Temperature: 0.0,
		MaxTokens:   1024,
	}

	response, err := r.client.Generate(ctx, prompt, opts)
	if err != nil {
		r.logger.Warn("llm rerank failed, using overlap scoring", zap.Error(err))
		return r.fallback.Rerank(ctx, question, results, k)
	}

	scores, err := parseRerankResponse(response, len(results))
	if err != nil {
		r.logger.Warn("llm rerank response unparseable, using overlap scoring", zap.Error(err))
		return r.fallback.Rerank(ctx, question, results, k)
	}

	terms := questionTerms(question)
	scored := make([]ScoredResult, len(results))
	for i, res := range results {
		scored[i] = ScoredResult{
			SearchResult: res,
			TermOverlap:  termOverlap(terms, res.Content),
			Final:        scores[i],
		}
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

func buildRerankPrompt(question string, results []retriever.SearchResult) string {
	var sb strings.Builder

	sb.WriteString("You are a relevance scoring system. Score each document's relevance to the query.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	sb.WriteString("Documents to score:\n")
	for i, res := range results {
		content := res.Content
		if len(content) > 500 {
			content = content[:500] + "..."
		}
		sb.WriteString(fmt.Sprintf("[Doc %d]: %s\n\n", i, content))
	}

	sb.WriteString(`Score each document from 0.0 to 1.0 based on relevance to the query.
Output ONLY valid JSON in this exact format:
{"scores": [{"doc_index": 0, "score": 0.9}, {"doc_index": 1, "score": 0.3}, ...]}

Be strict: irrelevant documents should score below 0.3, somewhat relevant 0.3-0.7, highly relevant above 0.7.
Output only JSON, no explanation:`)

	return sb.String()
}

// parseRerankResponse extracts per-document scores from the model output,
// tolerating markdown code fences around the JSON.
func parseRerankResponse(response string, numResults int) ([]float64, error) {
	response = strings.TrimSpace(response)

	if idx := strings.Index(response, "```json"); idx != -1 {
		start := idx + 7
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	} else if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	}

	var parsed rerankResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &parsed); err != nil {
		return nil, fmt.Errorf("parse rerank response: %w", err)
	}

	scores := make([]float64, numResults)
	for i := range scores {
		scores[i] = 0.5
	}
	for _, s := range parsed.Scores {
		if s.DocIndex < 0 || s.DocIndex >= numResults {
			continue
		}
		score := s.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		scores[s.DocIndex] = score
	}
	return scores, nil
}
