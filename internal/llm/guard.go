package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-qualifier/internal/resilience"
)

// Guard wraps a Generator with a request rate limit, a per-call timeout,
// retry on transient errors and a circuit breaker.
type Guard struct {
	inner   Generator
	name    string
	limiter *rate.Limiter
	timeout time.Duration
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithRequestsPerMinute limits call starts. Zero or less disables the limit.
func WithRequestsPerMinute(rpm int) GuardOption {
	return func(g *Guard) {
		if rpm <= 0 {
			g.limiter = nil
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guard) { g.timeout = d }
}

// WithRetry sets the retry policy.
func WithRetry(cfg resilience.RetryConfig) GuardOption {
	return func(g *Guard) { g.retry = cfg }
}

// WithBreaker sets the circuit breaker. A nil breaker disables it.
func WithBreaker(cb *resilience.CircuitBreaker) GuardOption {
	return func(g *Guard) { g.breaker = cb }
}

// NewGuard wraps inner. name identifies the provider in logs.
func NewGuard(inner Generator, name string, opts ...GuardOption) *Guard {
	g := &Guard{
		inner: inner,
		name:  name,
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.retry.OnRetry == nil {
		g.retry.OnRetry = resilience.RetryLogger(name, "generate")
	}
	return g
}

// Generate runs the wrapped generator under the guard's policies. The
// breaker sees the outcome of the whole retry sequence.
func (g *Guard) Generate(ctx context.Context, req Request) (string, error) {
	call := func(ctx context.Context) (string, error) {
		return resilience.DoVal(ctx, g.retry, g.attempt(req))
	}
	if g.breaker == nil {
		return call(ctx)
	}
	return resilience.ExecuteVal(ctx, g.breaker, call)
}

func (g *Guard) attempt(req Request) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}

		start := time.Now()
		text, err := g.inner.Generate(ctx, req)
		zap.L().Debug("llm: generate",
			zap.String("provider", g.name),
			zap.String("stage", req.Stage),
			zap.Duration("duration", time.Since(start)),
			zap.Bool("ok", err == nil),
		)
		return text, err
	}
}
