// Package pipeline wires question answering end to end: query expansion,
// hybrid retrieval, reranking, context assembly, answer synthesis, and
// confidence scoring.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campuskb/assist/internal/assembler"
	"github.com/campuskb/assist/internal/confidence"
	"github.com/campuskb/assist/internal/expander"
	"github.com/campuskb/assist/internal/history"
	"github.com/campuskb/assist/internal/metrics"
	"github.com/campuskb/assist/internal/reranker"
	"github.com/campuskb/assist/internal/retriever"
	"github.com/campuskb/assist/internal/synthesizer"
	"github.com/campuskb/assist/internal/vectorstore"
)

// NoAnswerResponse is returned when retrieval finds nothing usable. The
// generation model is never called in that case.
const NoAnswerResponse = "I couldn't find any information about that in the knowledge base. Try rephrasing your question or asking about something else."

// Request is one question from a client session.
type Request struct {
	SessionID    string `json:"session_id"`
	Question     string `json:"question"`
	UniversityID string `json:"university_id,omitempty"`
}

// Response is the complete answer payload.
type Response struct {
	Answer         string                `json:"answer"`
	Sources        []assembler.SourceRef `json:"sources"`
	Confidence     confidence.Report     `json:"confidence"`
	Degraded       []string              `json:"degraded,omitempty"`
	SearchTime     float64               `json:"search_time"`
	GenerationTime float64               `json:"generation_time"`
	TotalTime      float64               `json:"total_time"`
}

// Config holds the retrieval depth.
type Config struct {
	TopK          int
	HistoryWindow int
}

// Pipeline executes the full answering flow.
type Pipeline struct {
	expander    *expander.Expander
	retriever   *retriever.Retriever
	reranker    reranker.Reranker
	assembler   *assembler.Assembler
	synthesizer *synthesizer.Synthesizer
	scorer      *confidence.Scorer
	history     history.Store
	cfg         Config
	logger      *zap.Logger
}

func New(
	exp *expander.Expander,
	ret *retriever.Retriever,
	rr reranker.Reranker,
	asm *assembler.Assembler,
	syn *synthesizer.Synthesizer,
	scorer *confidence.Scorer,
	hist history.Store,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		expander:    exp,
		retriever:   ret,
		reranker:    rr,
		assembler:   asm,
		synthesizer: syn,
		scorer:      scorer,
		history:     hist,
		cfg:         cfg,
		logger:      logger,
	}
}

// Ask answers one question. Degraded stages are reported in the response
// rather than failing the request; only malformed input or infrastructure
// errors in retrieval surface as errors.
func (p *Pipeline) Ask(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("ask: question is required")
	}

	start := time.Now()
	var degraded []string

	turns := p.recentTurns(ctx, req.SessionID)

	searchStart := time.Now()
	queries := p.expandStage(ctx, req.Question, turns)
	if queries.Degraded != "" {
		degraded = append(degraded, queries.Degraded)
	}

	candidates, err := p.retrieveStage(ctx, queries, req.UniversityID)
	if err != nil {
		return nil, err
	}

	ranked, err := p.rerankStage(ctx, req.Question, candidates)
	if err != nil {
		return nil, err
	}
	searchTime := time.Since(searchStart)

	if len(ranked) == 0 {
		p.logger.Info("no candidates found",
			zap.String("session_id", req.SessionID),
			zap.String("question", req.Question),
		)
		total := time.Since(start)
		return &Response{
			Answer:     NoAnswerResponse,
			Sources:    []assembler.SourceRef{},
			Confidence: p.scorer.Score(nil, req.Question, ""),
			Degraded:   degraded,
			SearchTime: searchTime.Seconds(),
			TotalTime:  total.Seconds(),
		}, nil
	}

	contextText, sources, err := p.assembleStage(ranked, req.Question)
	if err != nil {
		return nil, err
	}

	genStart := time.Now()
	result, err := p.synthesizer.Synthesize(ctx, req.SessionID, contextText, req.Question, turns)
	if err != nil {
		return nil, err
	}
	genTime := time.Since(genStart)
	metrics.StageDuration.WithLabelValues("synthesize").Observe(genTime.Seconds())
	if result.Degraded != "" {
		degraded = append(degraded, result.Degraded)
	}

	report := p.scorer.Score(ranked, req.Question, result.Answer)
	total := time.Since(start)

	p.logger.Info("question answered",
		zap.String("session_id", req.SessionID),
		zap.Int("sources", len(sources)),
		zap.Float64("confidence", report.Score),
		zap.Duration("total", total),
	)

	return &Response{
		Answer:         result.Answer,
		Sources:        sources,
		Confidence:     report,
		Degraded:       degraded,
		SearchTime:     searchTime.Seconds(),
		GenerationTime: genTime.Seconds(),
		TotalTime:      total.Seconds(),
	}, nil
}

func (p *Pipeline) recentTurns(ctx context.Context, sessionID string) []history.Turn {
	if sessionID == "" {
		return nil
	}
	turns, err := p.history.Recent(ctx, sessionID, p.cfg.HistoryWindow)
	if err != nil {
		p.logger.Warn("failed to load conversation history",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return nil
	}
	return turns
}

func (p *Pipeline) expandStage(ctx context.Context, question string, turns []history.Turn) expander.QuerySet {
	defer observeStage("expand", time.Now())
	return p.expander.Expand(ctx, question, turns)
}

func (p *Pipeline) retrieveStage(ctx context.Context, queries expander.QuerySet, universityID string) ([]retriever.SearchResult, error) {
	defer observeStage("retrieve", time.Now())
	var filter *vectorstore.Filter
	if universityID != "" {
		filter = &vectorstore.Filter{UniversityID: universityID}
	}
	results, err := p.retriever.Retrieve(ctx, queries, p.cfg.TopK, filter)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	return results, nil
}

func (p *Pipeline) rerankStage(ctx context.Context, question string, candidates []retriever.SearchResult) ([]reranker.ScoredResult, error) {
	defer observeStage("rerank", time.Now())
	ranked, err := p.reranker.Rerank(ctx, question, candidates, p.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	return ranked, nil
}

func (p *Pipeline) assembleStage(ranked []reranker.ScoredResult, question string) (string, []assembler.SourceRef, error) {
	defer observeStage("assemble", time.Now())
	contextText, sources, err := p.assembler.Assemble(ranked, question)
	if err != nil {
		return "", nil, fmt.Errorf("assemble: %w", err)
	}
	return contextText, sources, nil
}

func observeStage(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
