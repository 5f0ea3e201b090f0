package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/lead-qualifier/internal/resilience"
)

// GeminiConfig configures NewGeminiGenerator.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the Gemini API base URL.
	BaseURL string
}

// GeminiGenerator generates text with the Google Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator builds a Gemini API client.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, eris.New("llm: gemini api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, eris.New("llm: gemini model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "llm: gemini client")
	}
	return &GeminiGenerator{client: client, model: strings.TrimSpace(cfg.Model)}, nil
}

// Generate runs a single-candidate GenerateContent call.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	temp := float32(req.Temperature)
	gc := &genai.GenerateContentConfig{
		CandidateCount: 1,
		Temperature:    &temp,
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}
	if sys := req.SystemPrompt(); sys != "" {
		gc.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
	}
	if req.Format == FormatJSON {
		gc.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), gc)
	if err != nil {
		return "", classifyGemini(err)
	}
	return resp.Text(), nil
}

func classifyGemini(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return resilience.NewTransientError(err, apiErr.Code)
		}
		return eris.Wrap(err, "llm: gemini generate")
	}
	if resilience.IsTransient(err) {
		return resilience.NewTransientError(err, 0)
	}
	return eris.Wrap(err, "llm: gemini generate")
}
