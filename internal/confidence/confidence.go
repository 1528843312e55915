// Package confidence estimates how trustworthy a generated answer is from
// retrieval quality and answer shape, without calling a model.
package confidence

import (
	"sort"
	"strings"

	"github.com/campuskb/assist/internal/reranker"
)

// Weights blends the four components into the overall score. They should sum
// to 1 for a score in [0,1].
type Weights struct {
	Similarity float64
	Coverage   float64
	Quality    float64
	Diversity  float64
}

// DefaultWeights leans on retrieval similarity as the strongest signal.
func DefaultWeights() Weights {
	return Weights{Similarity: 0.4, Coverage: 0.2, Quality: 0.2, Diversity: 0.2}
}

// Config tunes component computation.
type Config struct {
	Weights Weights
	// Top1Weight and TopMeanWeight blend the best candidate's similarity
	// with the mean similarity of the top five candidates, so one lucky
	// hit over weak support does not read as uniformly strong retrieval.
	Top1Weight    float64
	TopMeanWeight float64
	// CoverageSimThreshold is the similarity above which a candidate
	// counts as a strong supporting document.
	CoverageSimThreshold float64
	// HedgingPenaltyFactor scales answer quality down when the answer
	// hedges about missing information.
	HedgingPenaltyFactor float64
}

func DefaultConfig() Config {
	return Config{
		Weights:              DefaultWeights(),
		Top1Weight:           0.6,
		TopMeanWeight:        0.4,
		CoverageSimThreshold: 0.6,
		HedgingPenaltyFactor: 0.5,
	}
}

// Components are the individual signals, each in [0,1].
type Components struct {
	Similarity float64 `json:"similarity"`
	Coverage   float64 `json:"coverage"`
	Quality    float64 `json:"answer_quality"`
	Diversity  float64 `json:"diversity"`
}

// Report is the overall score plus its breakdown.
type Report struct {
	Score      float64    `json:"score"`
	Components Components `json:"components"`
}

// hedgingPhrases are answer fragments that signal the model lacked grounding.
var hedgingPhrases = []string{
	"i don't have enough information",
	"i do not have enough information",
	"i'm not sure",
	"i am not sure",
	"the context does not contain",
	"the context doesn't contain",
	"no information available",
}

// Scorer computes confidence reports.
type Scorer struct {
	cfg Config
}

func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score rates the answer given the candidates that produced it. An empty
// candidate set yields zero for every retrieval component.
func (s *Scorer) Score(results []reranker.ScoredResult, question, answer string) Report {
	c := Components{
		Similarity: s.topSimilarity(results),
		Coverage:   s.coverage(results),
		Quality:    s.answerQuality(answer),
		Diversity:  s.diversity(results),
	}
	w := s.cfg.Weights
	score := w.Similarity*c.Similarity +
		w.Coverage*c.Coverage +
		w.Quality*c.Quality +
		w.Diversity*c.Diversity
	return Report{Score: clamp01(score), Components: c}
}

// topSimilarity blends the single best similarity with the mean of the top
// five candidates (or however many exist).
func (s *Scorer) topSimilarity(results []reranker.ScoredResult) float64 {
	if len(results) == 0 {
		return 0
	}

	sims := make([]float64, 0, len(results))
	for _, res := range results {
		sims = append(sims, clamp01(res.Similarity))
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sims)))

	n := len(sims)
	if n > 5 {
		n = 5
	}
	sum := 0.0
	for _, sim := range sims[:n] {
		sum += sim
	}
	mean := sum / float64(n)

	return clamp01(s.cfg.Top1Weight*sims[0] + s.cfg.TopMeanWeight*mean)
}

// coverage saturates once five candidates clear the similarity threshold.
func (s *Scorer) coverage(results []reranker.ScoredResult) float64 {
	strong := 0
	for _, res := range results {
		if res.Similarity > s.cfg.CoverageSimThreshold {
			strong++
		}
	}
	return clamp01(float64(strong) / 5)
}

// diversity saturates at three distinct source documents.
func (s *Scorer) diversity(results []reranker.ScoredResult) float64 {
	distinct := make(map[string]struct{}, len(results))
	for _, res := range results {
		distinct[res.DocumentID] = struct{}{}
	}
	return clamp01(float64(len(distinct)) / 3)
}

// answerQuality scores answer length in words: ramping up to 15 words, flat
// through 800, then decaying linearly to zero at 1600. Hedging language
// halves the result.
func (s *Scorer) answerQuality(answer string) float64 {
	words := len(strings.Fields(answer))
	var quality float64
	switch {
	case words == 0:
		quality = 0
	case words < 15:
		quality = float64(words) / 15
	case words <= 800:
		quality = 1
	case words < 1600:
		quality = float64(1600-words) / 800
	default:
		quality = 0
	}

	if containsHedging(answer) {
		quality *= s.cfg.HedgingPenaltyFactor
	}
	return clamp01(quality)
}

func containsHedging(answer string) bool {
	lowered := strings.ToLower(answer)
	for _, phrase := range hedgingPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
