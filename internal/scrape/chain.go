package scrape

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain hands a URL to each supporting scraper in order until one returns
// a page.
type Chain struct {
	exclude  *PathMatcher
	scrapers []Scraper
}

// NewChain builds a Chain. A nil matcher uses the default exclusions.
func NewChain(matcher *PathMatcher, scrapers ...Scraper) *Chain {
	if matcher == nil {
		matcher = NewPathMatcher(nil)
	}
	return &Chain{exclude: matcher, scrapers: scrapers}
}

// Names lists the scrapers in the order they are tried.
func (c *Chain) Names() []string {
	names := make([]string, len(c.scrapers))
	for i, s := range c.scrapers {
		names[i] = s.Name()
	}
	return names
}

// Failure is one scraper's error for a URL.
type Failure struct {
	Scraper string
	Err     error
}

// ChainError reports every scraper that was tried for a URL.
type ChainError struct {
	URL      string
	Failures []Failure
}

func (e *ChainError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("scrape: no scraper supports %s", e.URL)
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Scraper + ": " + f.Err.Error()
	}
	return fmt.Sprintf("scrape: %s failed on every scraper (%s)", e.URL, strings.Join(parts, "; "))
}

// Unwrap exposes the last scraper's error.
func (e *ChainError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[len(e.Failures)-1].Err
}

// Scrape returns the first page any scraper produces for targetURL. A
// cancelled context stops the chain between scrapers.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	if c.exclude.IsExcluded(targetURL) {
		return nil, eris.Errorf("scrape: %s is excluded", targetURL)
	}

	chainErr := &ChainError{URL: targetURL}
	for _, s := range c.scrapers {
		if !s.Supports(targetURL) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "scrape: %s", targetURL)
		}
		res, err := s.Scrape(ctx, targetURL)
		if err != nil {
			zap.L().Debug("scrape: falling through",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			chainErr.Failures = append(chainErr.Failures, Failure{Scraper: s.Name(), Err: err})
			continue
		}
		if res != nil {
			if res.Source == "" {
				res.Source = s.Name()
			}
			return res, nil
		}
	}
	return nil, chainErr
}
