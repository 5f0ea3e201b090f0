// Package research fetches company pages and runs web searches for the
// research stage.
package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/scrape"
	"github.com/sells-group/lead-qualifier/pkg/jina"
	"github.com/sells-group/lead-qualifier/pkg/perplexity"
)

// Service is the web research surface used by the pipeline.
type Service interface {
	Fetch(ctx context.Context, url string) (*model.Page, error)
	Search(ctx context.Context, query string, max int) ([]model.SearchResult, error)
}

const snippetLength = 300

// WebService fetches through a scrape chain and searches with Jina. When a
// Jina search fails or comes back empty, Perplexity answers the same query
// and its cited sources become the results.
type WebService struct {
	chain         *scrape.Chain
	search        jina.Client
	fallback      perplexity.Client
	fetchTimeout  time.Duration
	searchTimeout time.Duration
}

// Option configures a WebService.
type Option func(*WebService)

// WithFallback enables Perplexity search fallback.
func WithFallback(c perplexity.Client) Option {
	return func(s *WebService) { s.fallback = c }
}

// WithTimeouts bounds each fetch and search call. Zero keeps the default.
func WithTimeouts(fetch, search time.Duration) Option {
	return func(s *WebService) {
		if fetch > 0 {
			s.fetchTimeout = fetch
		}
		if search > 0 {
			s.searchTimeout = search
		}
	}
}

// NewWebService creates a WebService.
func NewWebService(chain *scrape.Chain, search jina.Client, opts ...Option) *WebService {
	s := &WebService{
		chain:         chain,
		search:        search,
		fetchTimeout:  15 * time.Second,
		searchTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch returns the page at url from the first scraper that succeeds.
func (s *WebService) Fetch(ctx context.Context, url string) (*model.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	res, err := s.chain.Scrape(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "research: fetch %s", url)
	}
	page := res.Page
	if page.URL == "" {
		page.URL = url
	}
	return &page, nil
}

// Search returns up to max results for query. A leading "site:domain"
// token is sent as a site filter.
func (s *WebService) Search(ctx context.Context, query string, max int) ([]model.SearchResult, error) {
	if max <= 0 {
		max = 10
	}
	results, err := s.jinaSearch(ctx, query, max)
	if err == nil && len(results) > 0 {
		return results, nil
	}
	if s.fallback == nil {
		return results, err
	}

	zap.L().Debug("research: search falling back to perplexity",
		zap.String("query", query),
		zap.Error(err),
	)
	fb, fbErr := s.perplexitySearch(ctx, query, max)
	if fbErr != nil {
		if err != nil {
			return nil, eris.Wrapf(fbErr, "research: search %q (jina: %v)", query, err)
		}
		return nil, fbErr
	}
	return fb, nil
}

func (s *WebService) jinaSearch(ctx context.Context, query string, max int) ([]model.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()

	q, site := splitSite(query)
	opts := []jina.SearchOption{jina.WithLimit(max)}
	if site != "" {
		opts = append(opts, jina.WithSiteFilter(site))
	}

	resp, err := s.search.Search(ctx, q, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "research: jina search %q", query)
	}

	out := make([]model.SearchResult, 0, len(resp.Data))
	for _, r := range resp.Data {
		if r.URL == "" {
			continue
		}
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		out = append(out, model.SearchResult{
			Title:   strings.TrimSpace(r.Title),
			URL:     r.URL,
			Snippet: clip(strings.TrimSpace(snippet), snippetLength),
		})
	}
	return out, nil
}

const fallbackPrompt = `Search the web for: %s

Summarize the most relevant sources in two or three sentences.`

func (s *WebService) perplexitySearch(ctx context.Context, query string, max int) ([]model.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()

	q, site := splitSite(query)
	req := perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{{Role: "user", Content: fmt.Sprintf(fallbackPrompt, q)}},
	}
	if site != "" {
		// The filter takes bare domains.
		domain, _, _ := strings.Cut(site, "/")
		req.SearchDomainFilter = []string{domain}
	}
	resp, err := s.fallback.ChatCompletion(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(err, "research: perplexity search %q", query)
	}
	return fromPerplexity(resp, max), nil
}

// fromPerplexity prefers structured search results and falls back to bare
// citation URLs. The answer text becomes the snippet of the first result.
func fromPerplexity(resp *perplexity.ChatCompletionResponse, max int) []model.SearchResult {
	var out []model.SearchResult
	seen := make(map[string]bool)
	add := func(title, url string) {
		if url == "" || seen[url] || len(out) >= max {
			return
		}
		seen[url] = true
		if title == "" {
			title = url
		}
		out = append(out, model.SearchResult{Title: title, URL: url})
	}
	for _, r := range resp.SearchResults {
		add(r.Title, r.URL)
	}
	for _, c := range resp.Citations {
		add("", c)
	}
	if len(out) > 0 {
		out[0].Snippet = clip(strings.TrimSpace(resp.Content()), snippetLength)
	}
	return out
}

func splitSite(query string) (string, string) {
	fields := strings.Fields(query)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "site:") {
		return query, ""
	}
	return strings.Join(fields[1:], " "), strings.TrimPrefix(fields[0], "site:")
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
