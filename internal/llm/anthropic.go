package llm

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualifier/internal/resilience"
	"github.com/sells-group/lead-qualifier/pkg/anthropic"
)

const defaultMaxTokens = 1024

// AnthropicGenerator generates text with the Anthropic Messages API.
type AnthropicGenerator struct {
	client anthropic.Client
	model  string
}

// NewAnthropicGenerator wraps an anthropic.Client.
func NewAnthropicGenerator(client anthropic.Client, model string) *AnthropicGenerator {
	return &AnthropicGenerator{client: client, model: model}
}

// Generate sends a single user message and returns the concatenated text.
func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temp := req.Temperature

	msgReq := anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	}
	if sys := req.SystemPrompt(); sys != "" {
		msgReq.System = anthropic.BuildCachedSystemBlocks(sys)
	}

	resp, err := g.client.CreateMessage(ctx, msgReq)
	if err != nil {
		return "", classifyAnthropic(err)
	}
	resp.Usage.LogCost(g.model, req.Stage)
	return resp.Text(), nil
}

func classifyAnthropic(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		// 529 is Anthropic's overloaded status.
		if resilience.IsTransientHTTPStatus(apiErr.StatusCode) || apiErr.StatusCode == 529 {
			return resilience.NewTransientError(err, apiErr.StatusCode)
		}
	}
	return eris.Wrap(err, "llm: anthropic generate")
}
