// Package synthesizer generates the final answer from assembled context and
// records the exchange in conversation history.
package synthesizer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/campuskb/assist/internal/history"
	"github.com/campuskb/assist/internal/llm"
)

// FallbackAnswer is returned when generation fails after retries. It is a
// value, not an error, so the caller still produces a response.
const FallbackAnswer = "I'm sorry, I wasn't able to generate an answer right now. Please try again in a moment."

// Result is the synthesis outcome. Degraded is empty on the happy path and
// names the degradation otherwise.
type Result struct {
	Answer   string
	Degraded string
}

// Config tunes generation.
type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Retry       llm.RetryPolicy
}

// Synthesizer turns context and question into an answer via the generation
// model, threading recent conversation history into the prompt.
type Synthesizer struct {
	client  llm.Client
	history history.Store
	cfg     Config
	logger  *zap.Logger
}

func New(client llm.Client, hist history.Store, cfg Config, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{client: client, history: hist, cfg: cfg, logger: logger}
}

// Synthesize generates an answer grounded in contextText. On model failure it
// returns the fallback answer with Degraded set rather than an error. The
// question and answer are appended to history only when generation succeeds;
// an append failure is logged but does not fail the request.
func (s *Synthesizer) Synthesize(ctx context.Context, sessionID, contextText, question string, turns []history.Turn) (Result, error) {
	prompt, err := buildPrompt(PromptInput{
		Context:     contextText,
		Question:    question,
		HistoryText: history.FormatForPrompt(turns),
	})
	if err != nil {
		return Result{}, err
	}

	opts := llm.GenerateOptions{
		Model:        s.cfg.Model,
		SystemPrompt: systemPrompt,
		Temperature:  s.cfg.Temperature,
		MaxTokens:    s.cfg.MaxTokens,
	}

	answer, err := llm.GenerateWithRetry(ctx, s.client, prompt, opts, s.cfg.Retry)
	if err != nil {
		s.logger.Error("answer generation failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return Result{Answer: FallbackAnswer, Degraded: "generation_failed"}, nil
	}

	s.appendTurn(ctx, sessionID, question, answer)
	return Result{Answer: answer}, nil
}

func (s *Synthesizer) appendTurn(ctx context.Context, sessionID, question, answer string) {
	if sessionID == "" {
		return
	}
	turn := history.Turn{
		SessionID: sessionID,
		Question:  question,
		Answer:    answer,
		Timestamp: time.Now(),
	}
	if err := s.history.Append(ctx, turn); err != nil {
		s.logger.Warn("failed to record conversation turn",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
