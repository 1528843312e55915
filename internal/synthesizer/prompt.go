package synthesizer

import (
	"fmt"
	"strings"
	"text/template"
)

// PromptInput carries the fields interpolated into the answer prompt.
// Context and Question are required.
type PromptInput struct {
	Context     string
	Question    string
	HistoryText string
}

const systemPrompt = `You are a helpful assistant answering questions about universities using only the provided context. If the context does not contain the answer, say so plainly instead of guessing. For answers with multiple parts, prefer structured output with headings or bullet points. Keep answers concise and factual.`

var answerTemplate = template.Must(template.New("answer").Parse(
	`Context:
{{.Context}}
{{if .HistoryText}}
Conversation so far:
{{.HistoryText}}{{end}}
Question: {{.Question}}

Answer using only the context above.`))

// buildPrompt renders the answer prompt, rejecting inputs that would produce
// a degenerate request.
func buildPrompt(in PromptInput) (string, error) {
	if strings.TrimSpace(in.Context) == "" {
		return "", fmt.Errorf("build prompt: context is required")
	}
	if strings.TrimSpace(in.Question) == "" {
		return "", fmt.Errorf("build prompt: question is required")
	}

	var sb strings.Builder
	if err := answerTemplate.Execute(&sb, in); err != nil {
		return "", fmt.Errorf("render answer prompt: %w", err)
	}
	return sb.String(), nil
}
