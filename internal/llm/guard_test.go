package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualifier/internal/config"
	"github.com/sells-group/lead-qualifier/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestGuard_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	inner := GeneratorFunc(func(_ context.Context, _ Request) (string, error) {
		if calls.Add(1) < 3 {
			return "", resilience.NewTransientError(errors.New("429"), 429)
		}
		return "ok", nil
	})

	g := NewGuard(inner, "test", WithRetry(fastRetry()))
	out, err := g.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGuard_PermanentNotRetried(t *testing.T) {
	var calls atomic.Int32
	inner := GeneratorFunc(func(_ context.Context, _ Request) (string, error) {
		calls.Add(1)
		return "", errors.New("bad request")
	})

	g := NewGuard(inner, "test", WithRetry(fastRetry()))
	_, err := g.Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGuard_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	inner := GeneratorFunc(func(_ context.Context, _ Request) (string, error) {
		calls.Add(1)
		return "", resilience.NewTransientError(errors.New("503"), 503)
	})

	cb := resilience.NewCircuitBreaker(resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	retry := fastRetry()
	retry.MaxAttempts = 1
	g := NewGuard(inner, "test", WithRetry(retry), WithBreaker(cb))

	for range 2 {
		_, err := g.Generate(context.Background(), Request{})
		require.Error(t, err)
	}
	assert.Equal(t, resilience.CircuitOpen, cb.State())

	_, err := g.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGuard_TimeoutPerAttempt(t *testing.T) {
	inner := GeneratorFunc(func(ctx context.Context, _ Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	retry := fastRetry()
	retry.MaxAttempts = 1
	g := NewGuard(inner, "test", WithRetry(retry), WithTimeout(5*time.Millisecond))

	_, err := g.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuard_RateLimitHonoursContext(t *testing.T) {
	inner := GeneratorFunc(func(_ context.Context, _ Request) (string, error) { return "ok", nil })
	g := NewGuard(inner, "test", WithRequestsPerMinute(1), WithRetry(fastRetry()))

	_, err := g.Generate(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, Request{})
	assert.Error(t, err)
}

func TestWithRequestsPerMinute_Disabled(t *testing.T) {
	g := NewGuard(GeneratorFunc(nil), "test", WithRequestsPerMinute(0))
	assert.Nil(t, g.limiter)
}

func TestNew(t *testing.T) {
	breakers := resilience.NewServiceBreakers(resilience.DefaultBreakerConfig())
	cfg := &config.Config{
		Anthropic:  config.AnthropicConfig{Key: "k", Model: "claude-haiku-4-5-20251001"},
		Perplexity: config.PerplexityConfig{Key: "k"},
		Generation: config.GenerationConfig{RequestsPerMinute: 30, TimeoutSecs: 60},
	}

	for _, provider := range []string{"", ProviderAnthropic, ProviderPerplexity} {
		cfg.Generation.Provider = provider
		gen, err := New(context.Background(), cfg, breakers)
		require.NoError(t, err, provider)
		guard, ok := gen.(*Guard)
		require.True(t, ok)
		assert.NotNil(t, guard.breaker)
		assert.Equal(t, 60*time.Second, guard.timeout)
	}

	cfg.Generation.Provider = ProviderGemini
	_, err := New(context.Background(), cfg, breakers)
	assert.Error(t, err, "gemini without a key")

	cfg.Generation.Provider = "openai"
	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)
}
