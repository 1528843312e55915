// Package assembler turns ranked candidates into the bounded context block
// handed to the generation model, plus the source references surfaced to the
// caller.
package assembler

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/campuskb/assist/internal/reranker"
)

// SourceRef identifies a document that contributed to the assembled context.
type SourceRef struct {
	Title      string  `json:"title"`
	SourceURL  string  `json:"source_url"`
	Similarity float64 `json:"similarity"`
}

// Config bounds the assembled context.
type Config struct {
	// PerDocCap is the maximum number of characters taken from any one
	// document.
	PerDocCap int
	// CharBudget is the overall context size limit.
	CharBudget int
}

// DefaultConfig fits roughly a dozen capped excerpts.
func DefaultConfig() Config {
	return Config{PerDocCap: 1200, CharBudget: 12000}
}

// Assembler packs excerpts in rank order until the character budget runs out.
type Assembler struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Assembler {
	return &Assembler{cfg: cfg, logger: logger}
}

// Assemble builds the context text from ranked results. The top-ranked
// document is always included, even when its capped excerpt alone exceeds the
// budget; packing stops at the first document that would overflow.
func (a *Assembler) Assemble(results []reranker.ScoredResult, question string) (string, []SourceRef, error) {
	if a.cfg.CharBudget <= 0 {
		return "", nil, fmt.Errorf("assemble: char budget must be positive, got %d", a.cfg.CharBudget)
	}
	if a.cfg.PerDocCap <= 0 {
		return "", nil, fmt.Errorf("assemble: per-doc cap must be positive, got %d", a.cfg.PerDocCap)
	}
	if len(results) == 0 {
		return "", nil, nil
	}

	var sb strings.Builder
	sources := make([]SourceRef, 0, len(results))

	for i, res := range results {
		entry := a.formatEntry(res)
		if i > 0 && sb.Len()+len(entry) > a.cfg.CharBudget {
			break
		}
		sb.WriteString(entry)
		sources = append(sources, SourceRef{
			Title:      res.Title,
			SourceURL:  res.SourceURL,
			Similarity: res.Similarity,
		})
	}

	contextText := sb.String()
	a.logger.Debug("context assembled",
		zap.String("question", question),
		zap.Int("documents", len(sources)),
		zap.Int("chars", len(contextText)),
	)
	return contextText, sources, nil
}

// formatEntry renders one document as a titled excerpt, truncated to the
// per-document cap.
func (a *Assembler) formatEntry(res reranker.ScoredResult) string {
	excerpt := res.Content
	if len(excerpt) > a.cfg.PerDocCap {
		excerpt = excerpt[:a.cfg.PerDocCap]
	}
	return fmt.Sprintf("%s: %s\n\n", res.Title, excerpt)
}
