package llm

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualifier/internal/config"
	"github.com/sells-group/lead-qualifier/internal/resilience"
	"github.com/sells-group/lead-qualifier/pkg/anthropic"
	"github.com/sells-group/lead-qualifier/pkg/perplexity"
)

// Provider names accepted by generation.provider.
const (
	ProviderAnthropic  = "anthropic"
	ProviderPerplexity = "perplexity"
	ProviderGemini     = "gemini"
)

// New builds the configured provider wrapped in a Guard. The breaker comes
// from breakers so callers can report its state.
func New(ctx context.Context, cfg *config.Config, breakers *resilience.ServiceBreakers) (Generator, error) {
	var inner Generator
	switch cfg.Generation.Provider {
	case ProviderAnthropic, "":
		inner = NewAnthropicGenerator(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
	case ProviderPerplexity:
		var opts []perplexity.Option
		if cfg.Perplexity.BaseURL != "" {
			opts = append(opts, perplexity.WithBaseURL(cfg.Perplexity.BaseURL))
		}
		inner = NewPerplexityGenerator(perplexity.NewClient(cfg.Perplexity.Key, opts...), cfg.Perplexity.Model)
	case ProviderGemini:
		g, err := NewGeminiGenerator(ctx, GeminiConfig{
			APIKey:  cfg.Gemini.Key,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		inner = g
	default:
		return nil, eris.Errorf("llm: unknown provider %q", cfg.Generation.Provider)
	}

	name := cfg.Generation.Provider
	if name == "" {
		name = ProviderAnthropic
	}
	opts := []GuardOption{
		WithRequestsPerMinute(cfg.Generation.RequestsPerMinute),
		WithRetry(resilience.FromRetryConfig(cfg.Generation.Retry)),
	}
	if cfg.Generation.TimeoutSecs > 0 {
		opts = append(opts, WithTimeout(time.Duration(cfg.Generation.TimeoutSecs)*time.Second))
	}
	if breakers != nil {
		opts = append(opts, WithBreaker(breakers.Get(name)))
	}
	return NewGuard(inner, name, opts...), nil
}
