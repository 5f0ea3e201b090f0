package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-qualifier/internal/intake"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/scrape"
)

const (
	maxWebsiteContent = 12000
	minSubpageText    = 80
	maxNewsItems      = 5
	researchFanout    = 4
)

var subpages = []string{"/about", "/contact", "/team", "/about-us", "/contact-us"}

type searchQuery struct {
	label string
	query string
	max   int
}

// contextSearches are the queries whose results feed enrichment, in the
// order their results are concatenated.
func contextSearches(company string) []searchQuery {
	return []searchQuery{
		{"overview", fmt.Sprintf("%s company overview products services what does %s do", company, company), 10},
		{"leadership", fmt.Sprintf("%s CEO founder CTO leadership team LinkedIn executive", company), 8},
		{"hr_email", fmt.Sprintf("%s HR email human resources careers@ jobs@ recruitment contact email", company), 5},
		{"contact_email", fmt.Sprintf("%s contact email address info@ hello@ hr@", company), 5},
		{"linkedin", fmt.Sprintf("site:linkedin.com/company %s", company), 3},
		{"size", fmt.Sprintf("%s employees revenue funding valuation crunchbase", company), 5},
	}
}

func newsSearch(company string) searchQuery {
	return searchQuery{"news", fmt.Sprintf("%s latest news funding announcement 2024 2025", company), 8}
}

func fallbackSearch(company string) searchQuery {
	return searchQuery{"fallback", fmt.Sprintf("%s company overview CEO HR contact email", company), 8}
}

// ResearchLead gathers website text, tech stack, open positions, search
// results and news. Every fetch and search is best effort; the stage itself
// never fails.
func (s *Stages) ResearchLead(ctx context.Context, l *model.Lead) (*model.LeadDelta, error) {
	log := zap.L().With(zap.String("company", l.CompanyName))

	var (
		content   string
		techStack = []string{}
		positions = []string{}
	)
	if l.CompanyWebsite != "" {
		content, techStack, positions = s.researchWebsite(ctx, log, l.CompanyWebsite)
	}

	results, news := s.runSearches(ctx, log, l.CompanyName)
	if len(results) == 0 {
		q := fallbackSearch(l.CompanyName)
		if fb, err := s.Research.Search(ctx, q.query, q.max); err != nil {
			log.Warn("research: fallback search failed", zap.Error(err))
		} else if len(fb) > 0 {
			results = fb
			log.Info("research: fallback search", zap.Int("results", len(fb)))
		}
	}
	if results == nil {
		results = []model.SearchResult{}
	}

	log.Info("research: complete",
		zap.Int("content_chars", len(content)),
		zap.Int("search_results", len(results)),
		zap.Int("tech", len(techStack)),
		zap.Int("positions", len(positions)),
		zap.Int("news", len(news)),
	)

	d := s.stamp(model.StatusDelta(model.StatusEnriching))
	d.WebsiteContent = &content
	d.SearchResults = &results
	d.TechStack = &techStack
	d.OpenPositions = &positions
	d.RecentNews = &news
	return d, nil
}

func (s *Stages) researchWebsite(ctx context.Context, log *zap.Logger, website string) (string, []string, []string) {
	content := ""
	techStack := []string{}
	positions := []string{}

	home, err := s.Research.Fetch(ctx, website)
	if err != nil {
		log.Warn("research: website fetch failed", zap.String("url", website), zap.Error(err))
	} else if !home.Empty() {
		content = home.Text
		techStack = scrape.DetectTechStack(home.HTML)
		log.Info("research: scraped website", zap.String("url", website), zap.Int("chars", len(home.Text)))
	}

	base := strings.TrimRight(website, "/")
	texts := make([]string, len(subpages))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(researchFanout)
	for i, path := range subpages {
		g.Go(func() error {
			page, fetchErr := s.Research.Fetch(gCtx, base+path)
			if fetchErr != nil {
				log.Debug("research: subpage fetch failed", zap.String("path", path), zap.Error(fetchErr))
				return nil
			}
			if !page.Empty() && len(page.Text) > minSubpageText {
				texts[i] = page.Text
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, text := range texts {
		if text == "" {
			continue
		}
		content = truncate(content+"\n\n=== "+strings.ToUpper(subpages[i])+" PAGE ===\n"+text, maxWebsiteContent)
	}

	careers, err := s.Research.Fetch(ctx, base+"/careers")
	if err != nil {
		log.Debug("research: careers fetch failed", zap.Error(err))
	} else if !careers.Empty() {
		if jobs := scrape.ParseJobListings(careers.Text); len(jobs) > 0 {
			positions = jobs
			log.Info("research: job listings", zap.Int("count", len(jobs)))
		}
	}

	return content, techStack, positions
}

// runSearches issues the context searches and the news search concurrently.
// Results keep query order regardless of completion order.
func (s *Stages) runSearches(ctx context.Context, log *zap.Logger, company string) ([]model.SearchResult, []model.NewsItem) {
	queries := append(contextSearches(company), newsSearch(company))
	found := make([][]model.SearchResult, len(queries))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(researchFanout)
	for i, q := range queries {
		g.Go(func() error {
			res, err := s.Research.Search(gCtx, q.query, q.max)
			if err != nil {
				log.Warn("research: search failed", zap.String("search", q.label), zap.Error(err))
				return nil
			}
			log.Debug("research: search", zap.String("search", q.label), zap.Int("results", len(res)))
			found[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var results []model.SearchResult
	for _, res := range found[:len(found)-1] {
		results = append(results, res...)
	}

	news := []model.NewsItem{}
	for _, r := range found[len(found)-1] {
		if len(news) == maxNewsItems {
			break
		}
		news = append(news, model.NewsItem{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Snippet,
			Source:  newsSource(r.URL),
		})
	}
	return results, news
}

func newsSource(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	return intake.Domain(rawURL)
}
