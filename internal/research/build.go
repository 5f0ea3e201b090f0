package research

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/config"
	"github.com/sells-group/lead-qualifier/internal/resilience"
	"github.com/sells-group/lead-qualifier/internal/scrape"
	"github.com/sells-group/lead-qualifier/pkg/firecrawl"
	"github.com/sells-group/lead-qualifier/pkg/jina"
	"github.com/sells-group/lead-qualifier/pkg/perplexity"
)

// New builds a WebService from configuration. Pages are fetched directly
// first, then through Jina Reader, then Firecrawl when a key is set.
func New(cfg *config.Config, breakers *resilience.ServiceBreakers) *WebService {
	fetchTimeout := time.Duration(cfg.Research.FetchTimeoutSecs) * time.Second
	searchTimeout := time.Duration(cfg.Research.SearchTimeoutSecs) * time.Second

	var jinaOpts []jina.Option
	if cfg.Jina.BaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithBaseURL(cfg.Jina.BaseURL))
	}
	if cfg.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)

	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	scrapers := []scrape.Scraper{
		scrape.NewLocalScraper(fetchTimeout),
		scrape.NewJinaAdapter(jinaClient, breakers.Get("jina")),
	}
	if cfg.Firecrawl.Key != "" {
		var fcOpts []firecrawl.Option
		if cfg.Firecrawl.BaseURL != "" {
			fcOpts = append(fcOpts, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
		}
		scrapers = append(scrapers, scrape.NewFirecrawlAdapter(firecrawl.NewClient(cfg.Firecrawl.Key, fcOpts...)))
	}

	opts := []Option{WithTimeouts(fetchTimeout, searchTimeout)}
	if cfg.Research.PerplexityFallback && cfg.Perplexity.Key != "" {
		var pOpts []perplexity.Option
		if cfg.Perplexity.BaseURL != "" {
			pOpts = append(pOpts, perplexity.WithBaseURL(cfg.Perplexity.BaseURL))
		}
		if cfg.Perplexity.Model != "" {
			pOpts = append(pOpts, perplexity.WithModel(cfg.Perplexity.Model))
		}
		opts = append(opts, WithFallback(perplexity.NewClient(cfg.Perplexity.Key, pOpts...)))
	}

	chain := scrape.NewChain(nil, scrapers...)
	zap.L().Debug("research: scrape chain ready", zap.Strings("scrapers", chain.Names()))
	return NewWebService(chain, jinaClient, opts...)
}
