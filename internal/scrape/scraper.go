// Package scrape fetches company web pages through a chain of scrapers.
package scrape

import (
	"context"

	"github.com/sells-group/lead-qualifier/internal/model"
)

// MaxTextLength caps the extracted text of a single page.
const MaxTextLength = 8000

// Result holds a scraped page with its source.
type Result struct {
	Page   model.Page
	Source string // e.g. "local_http", "jina", "firecrawl"
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary.
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
