package expander

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/campuskb/assist/internal/history"
	"github.com/campuskb/assist/internal/llm"
)

type scriptedLLM struct {
	response string
	err      error
	prompts  []string
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string, _ llm.GenerateOptions) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestExpand_ParsesNumberedList(t *testing.T) {
	client := &scriptedLLM{response: "1. How does the co-op program work?\n2) What does the co-op program involve?\n- Can you describe the co-op program?\n"}
	e := New(client, Config{MaxVariants: 3}, zap.NewNop())

	set := e.Expand(context.Background(), "What is the co-op program?", nil)

	if set.Original != "What is the co-op program?" {
		t.Errorf("original changed: %q", set.Original)
	}
	if set.Degraded != "" {
		t.Errorf("unexpected degradation: %q", set.Degraded)
	}
	if len(set.Variants) != 3 {
		t.Fatalf("expected 3 variants, got %d: %v", len(set.Variants), set.Variants)
	}
	if set.Variants[0] != "How does the co-op program work?" {
		t.Errorf("numbering prefix not stripped: %q", set.Variants[0])
	}

	queries := set.Queries()
	if queries[0] != set.Original {
		t.Error("original must be the first retrieval query")
	}
	if len(queries) != 4 {
		t.Errorf("expected 4 queries, got %d", len(queries))
	}
}

func TestExpand_DropsDuplicatesAndEmpties(t *testing.T) {
	client := &scriptedLLM{response: "1. What is the co-op program?\n2.   \n3. What is co-op?\n4. what is co-op?\n"}
	e := New(client, Config{MaxVariants: 3}, zap.NewNop())

	set := e.Expand(context.Background(), "What is the co-op program?", nil)

	if len(set.Variants) != 1 {
		t.Fatalf("expected 1 variant after filtering, got %v", set.Variants)
	}
	if set.Variants[0] != "What is co-op?" {
		t.Errorf("unexpected variant: %q", set.Variants[0])
	}
}

func TestExpand_DegradesToOriginalOnFailure(t *testing.T) {
	client := &scriptedLLM{err: errors.New("model unavailable")}
	e := New(client, Config{MaxVariants: 3, Retry: llm.RetryPolicy{Retries: 2}}, zap.NewNop())

	set := e.Expand(context.Background(), "What is the co-op program?", nil)

	if set.Degraded == "" {
		t.Error("expected degradation reason")
	}
	if len(set.Variants) != 0 {
		t.Errorf("expected no variants, got %v", set.Variants)
	}
	queries := set.Queries()
	if len(queries) != 1 || queries[0] != "What is the co-op program?" {
		t.Fatalf("expected exactly the original query, got %v", queries)
	}
	// Retries were attempted before degrading.
	if len(client.prompts) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(client.prompts))
	}
}

func TestExpand_DegradesOnUnparseableResponse(t *testing.T) {
	client := &scriptedLLM{response: "   \n\n"}
	e := New(client, Config{MaxVariants: 3}, zap.NewNop())

	set := e.Expand(context.Background(), "What is the co-op program?", nil)

	if set.Degraded == "" {
		t.Error("expected degradation reason for empty response")
	}
	if len(set.Queries()) != 1 {
		t.Errorf("expected only the original query, got %v", set.Queries())
	}
}

func TestExpand_HistoryInformsPrompt(t *testing.T) {
	client := &scriptedLLM{response: "1. What are the requirements for the CS program?"}
	e := New(client, Config{MaxVariants: 3}, zap.NewNop())

	turns := []history.Turn{
		{Question: "What about CS?", Answer: "CS is offered as a major."},
	}
	set := e.Expand(context.Background(), "What are the requirements?", turns)

	if len(client.prompts) != 1 {
		t.Fatalf("expected one call, got %d", len(client.prompts))
	}
	if !strings.Contains(client.prompts[0], "What about CS?") {
		t.Error("prompt should include recent history for disambiguation")
	}
	found := false
	for _, v := range set.Variants {
		if strings.Contains(v, "CS") {
			found = true
		}
	}
	if !found {
		t.Error("expected at least one variant to carry the CS context")
	}
}
