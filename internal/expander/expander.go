// Package expander generates alternative phrasings of a question to improve
// retrieval recall.
package expander

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/campuskb/assist/internal/history"
	"github.com/campuskb/assist/internal/llm"
)

// QuerySet holds the original question plus up to MaxVariants paraphrases.
// Original is always the first retrieval query, even when expansion fails.
type QuerySet struct {
	Original string
	Variants []string

	// Degraded carries the reason expansion fell back to the original only.
	// Empty on clean expansion.
	Degraded string
}

// Queries returns all retrieval queries, original first.
func (q QuerySet) Queries() []string {
	out := make([]string, 0, 1+len(q.Variants))
	out = append(out, q.Original)
	out = append(out, q.Variants...)
	return out
}

// Config holds expander tunables.
type Config struct {
	MaxVariants int
	Retry       llm.RetryPolicy
	Model       string
}

// Expander asks the generative model for paraphrases of the user's question.
type Expander struct {
	client llm.Client
	cfg    Config
	logger *zap.Logger
}

// New creates an Expander.
func New(client llm.Client, cfg Config, logger *zap.Logger) *Expander {
	if cfg.MaxVariants <= 0 {
		cfg.MaxVariants = 3
	}
	return &Expander{client: client, cfg: cfg, logger: logger}
}

// Expand produces a QuerySet for the question. Recent history (at most the
// last 3 turns) is used only to disambiguate pronouns and implied context.
// Expansion failure is never fatal: the returned set then contains only the
// original question, with Degraded set.
func (e *Expander) Expand(ctx context.Context, question string, turns []history.Turn) QuerySet {
	set := QuerySet{Original: question}

	if len(turns) > 3 {
		turns = turns[len(turns)-3:]
	}

	prompt := e.buildPrompt(question, turns)
	opts := llm.GenerateOptions{
		Model:       e.cfg.Model,
		Temperature: 0.3,
		MaxTokens:   256,
	}

	response, err := llm.GenerateWithRetry(ctx, e.client, prompt, opts, e.cfg.Retry)
	if err != nil {
		e.logger.Warn("query expansion failed, using original only", zap.Error(err))
		set.Degraded = fmt.Sprintf("expansion call failed: %v", err)
		return set
	}

	variants := parseVariants(response, question, e.cfg.MaxVariants)
	if len(variants) == 0 {
		e.logger.Warn("query expansion returned no usable variants")
		set.Degraded = "expansion response unparseable or empty"
		return set
	}

	set.Variants = variants
	return set
}

func (e *Expander) buildPrompt(question string, turns []history.Turn) string {
	var sb strings.Builder

	sb.WriteString("Rephrase the question below in up to ")
	sb.WriteString(fmt.Sprintf("%d", e.cfg.MaxVariants))
	sb.WriteString(" alternative ways. Each rephrasing must ask the SAME specific question, ")
	sb.WriteString("not a broader or different one. Output a numbered list with one rephrasing ")
	sb.WriteString("per line and nothing else.\n\n")

	if len(turns) > 0 {
		sb.WriteString("Recent conversation (use it only to resolve pronouns or implied subjects, ")
		sb.WriteString("never to change the topic):\n")
		sb.WriteString(history.FormatForPrompt(turns))
		sb.WriteString("\n")
	}

	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n")

	return sb.String()
}

// parseVariants extracts paraphrases from a numbered-list response, stripping
// numbering prefixes and discarding empty lines and duplicates of the original.
func parseVariants(response, original string, max int) []string {
	normalizedOriginal := strings.ToLower(strings.TrimSpace(original))

	var variants []string
	seen := map[string]bool{normalizedOriginal: true}

	for _, line := range strings.Split(response, "\n") {
		v := stripListPrefix(strings.TrimSpace(line))
		if v == "" {
			continue
		}

		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true

		variants = append(variants, v)
		if len(variants) >= max {
			break
		}
	}

	return variants
}

// stripListPrefix removes leading list markers like "1.", "2)", "-" or "*".
func stripListPrefix(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')' || line[i] == ':') {
		line = line[i+1:]
	} else if len(line) > 0 && (line[0] == '-' || line[0] == '*') {
		line = line[1:]
	}
	return strings.TrimSpace(line)
}
