package llm

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualifier/internal/resilience"
	"github.com/sells-group/lead-qualifier/pkg/perplexity"
)

// PerplexityGenerator generates text with Perplexity chat completions.
type PerplexityGenerator struct {
	client perplexity.Client
	model  string
}

// NewPerplexityGenerator wraps a perplexity.Client. An empty model uses the
// client's default.
func NewPerplexityGenerator(client perplexity.Client, model string) *PerplexityGenerator {
	return &PerplexityGenerator{client: client, model: model}
}

// Generate sends the system and user messages and returns the first choice.
func (g *PerplexityGenerator) Generate(ctx context.Context, req Request) (string, error) {
	var msgs []perplexity.Message
	if sys := req.SystemPrompt(); sys != "" {
		msgs = append(msgs, perplexity.Message{Role: "system", Content: sys})
	}
	msgs = append(msgs, perplexity.Message{Role: "user", Content: req.Prompt})

	temp := req.Temperature
	chatReq := perplexity.ChatCompletionRequest{
		Model:       g.model,
		Messages:    msgs,
		Temperature: &temp,
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		chatReq.MaxTokens = &maxTokens
	}

	resp, err := g.client.ChatCompletion(ctx, chatReq)
	if err != nil {
		var se *perplexity.StatusError
		if errors.As(err, &se) && resilience.IsTransientHTTPStatus(se.StatusCode) {
			return "", resilience.NewTransientError(err, se.StatusCode)
		}
		return "", eris.Wrap(err, "llm: perplexity generate")
	}
	return resp.Content(), nil
}
